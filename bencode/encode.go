package bencode

import (
	"bytes"
	"sort"
	"strconv"
)

// Encode serializes v in canonical form: integers with no leading
// zeros, dictionary keys sorted ascending as raw byte sequences.
// Encoding a value then decoding it yields an equal value; decoding a
// canonical byte sequence then encoding it is the identity — this
// round trip is what info-hash derivation depends on.
func Encode(v *Value) []byte {
	var buf bytes.Buffer
	encodeInto(&buf, v)
	return buf.Bytes()
}

func encodeInto(buf *bytes.Buffer, v *Value) {
	switch v.Kind {
	case KindInt:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(v.Int, 10))
		buf.WriteByte('e')
	case KindString:
		buf.WriteString(strconv.Itoa(len(v.Str)))
		buf.WriteByte(':')
		buf.Write(v.Str)
	case KindList:
		buf.WriteByte('l')
		for _, item := range v.List {
			encodeInto(buf, item)
		}
		buf.WriteByte('e')
	case KindDict:
		buf.WriteByte('d')
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeInto(buf, StringValue([]byte(k)))
			encodeInto(buf, v.Dict[k])
		}
		buf.WriteByte('e')
	}
}
