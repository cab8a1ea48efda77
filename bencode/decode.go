package bencode

import (
	"strconv"

	"gorent/bterrors"
)

// Decode parses one bencode value from the front of data and returns it
// along with the unconsumed suffix. Decoding is structural: dictionaries
// preserve key order as seen, duplicate keys are rejected, and integers
// outside the signed 64-bit range are rejected.
func Decode(data []byte) (*Value, []byte, error) {
	v, next, err := decodeValue(data, 0)
	if err != nil {
		return nil, nil, err
	}
	return v, data[next:], nil
}

func decodeValue(data []byte, pos int) (*Value, int, error) {
	if pos >= len(data) {
		return nil, pos, bterrors.NewMalformedBencode(pos, "unexpected end of input")
	}
	switch {
	case data[pos] == 'i':
		return decodeInt(data, pos)
	case data[pos] == 'l':
		return decodeList(data, pos)
	case data[pos] == 'd':
		return decodeDict(data, pos)
	case data[pos] >= '0' && data[pos] <= '9':
		return decodeString(data, pos)
	default:
		return nil, pos, bterrors.NewMalformedBencode(pos, "expected 'i', 'l', 'd' or a digit")
	}
}

func decodeInt(data []byte, pos int) (*Value, int, error) {
	start := pos + 1
	end := start
	for end < len(data) && data[end] != 'e' {
		end++
	}
	if end >= len(data) {
		return nil, pos, bterrors.NewMalformedBencode(pos, "unterminated integer")
	}
	digits := string(data[start:end])
	if digits == "" {
		return nil, pos, bterrors.NewMalformedBencode(pos, "empty integer")
	}
	neg := digits[0] == '-'
	unsigned := digits
	if neg {
		unsigned = digits[1:]
	}
	if unsigned == "" {
		return nil, pos, bterrors.NewMalformedBencode(pos, "malformed integer sign")
	}
	if unsigned == "0" && neg {
		return nil, pos, bterrors.NewMalformedBencode(pos, "negative zero is not canonical")
	}
	if len(unsigned) > 1 && unsigned[0] == '0' {
		return nil, pos, bterrors.NewMalformedBencode(pos, "leading zero is not canonical")
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, pos, bterrors.NewMalformedBencode(pos, "integer overflows signed 64 bits")
	}
	return Int64Value(n), end + 1, nil
}

func decodeString(data []byte, pos int) (*Value, int, error) {
	cursor := pos
	for cursor < len(data) && data[cursor] != ':' {
		if data[cursor] < '0' || data[cursor] > '9' {
			return nil, pos, bterrors.NewMalformedBencode(pos, "malformed byte-string length")
		}
		cursor++
	}
	if cursor >= len(data) {
		return nil, pos, bterrors.NewMalformedBencode(pos, "byte string missing ':' separator")
	}
	length, err := strconv.ParseUint(string(data[pos:cursor]), 10, 63)
	if err != nil {
		return nil, pos, bterrors.NewMalformedBencode(pos, "invalid byte-string length")
	}
	start := cursor + 1
	end := start + int(length)
	if end > len(data) || end < start {
		return nil, pos, bterrors.NewMalformedBencode(pos, "byte string shorter than declared length")
	}
	out := make([]byte, length)
	copy(out, data[start:end])
	return StringValue(out), end, nil
}

func decodeList(data []byte, pos int) (*Value, int, error) {
	cursor := pos + 1
	items := []*Value{}
	for {
		if cursor >= len(data) {
			return nil, pos, bterrors.NewMalformedBencode(pos, "unterminated list")
		}
		if data[cursor] == 'e' {
			cursor++
			break
		}
		item, next, err := decodeValue(data, cursor)
		if err != nil {
			return nil, pos, err
		}
		items = append(items, item)
		cursor = next
	}
	return &Value{Kind: KindList, List: items}, cursor, nil
}

func decodeDict(data []byte, pos int) (*Value, int, error) {
	cursor := pos + 1
	dict := make(map[string]*Value)
	keys := []string{}
	for {
		if cursor >= len(data) {
			return nil, pos, bterrors.NewMalformedBencode(pos, "unterminated dictionary")
		}
		if data[cursor] == 'e' {
			cursor++
			break
		}
		keyPos := cursor
		keyVal, next, err := decodeValue(data, cursor)
		if err != nil {
			return nil, pos, err
		}
		if keyVal.Kind != KindString {
			return nil, pos, bterrors.NewMalformedBencode(keyPos, "dictionary key must be a byte string")
		}
		key := string(keyVal.Str)
		cursor = next

		val, next2, err := decodeValue(data, cursor)
		if err != nil {
			return nil, pos, err
		}
		cursor = next2

		if _, exists := dict[key]; exists {
			return nil, pos, bterrors.NewMalformedBencode(keyPos, "duplicate dictionary key "+key)
		}
		dict[key] = val
		keys = append(keys, key)
	}
	return &Value{Kind: KindDict, Dict: dict, Keys: keys}, cursor, nil
}
