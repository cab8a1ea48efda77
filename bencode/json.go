package bencode

import "unicode/utf8"

// ToAny converts a Value tree into a plain Go value (map[string]any,
// []any, int64, string) suitable for encoding/json. This is a
// convenience for the "decode" CLI subcommand's textual rendering; it
// is not part of the wire contract. Byte strings are rendered as UTF-8
// text when valid, and as raw bytes (which encoding/json base64-encodes)
// otherwise.
func ToAny(v *Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindString:
		if utf8.Valid(v.Str) {
			return string(v.Str)
		}
		return v.Str
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = ToAny(item)
		}
		return out
	case KindDict:
		out := make(map[string]interface{}, len(v.Dict))
		for k, item := range v.Dict {
			out[k] = ToAny(item)
		}
		return out
	default:
		return nil
	}
}
