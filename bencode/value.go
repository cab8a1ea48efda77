// Package bencode implements the bencode grammar used by .torrent files
// and tracker responses: signed integers, length-prefixed byte strings,
// ordered lists and dictionaries with lexicographically sorted keys.
//
// Two decoding modes are exposed. Decode produces a structured Value
// tree — the mode the "decode" CLI subcommand uses to render an
// arbitrary bencoded blob, and the mode torrentfile and tracker use to
// read .torrent files and announce responses. Unmarshal is
// schema-directed: it decodes data into a Value tree and then assigns
// that tree into a caller-supplied Go value by its `bencode:"name"`
// struct tags.
package bencode

// Kind tags which of the four bencode value kinds a Value holds.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindList
	KindDict
)

// Value is a tagged union over the four bencode value kinds. Only the
// field matching Kind is meaningful.
type Value struct {
	Kind Kind

	Int  int64
	Str  []byte
	List []*Value
	Dict map[string]*Value

	// Keys records dictionary key order as seen by Decode. Encode
	// ignores it and always emits keys in sorted order: canonical form
	// does not depend on the order a Value was built in.
	Keys []string
}

// Int64Value builds an integer Value.
func Int64Value(n int64) *Value {
	return &Value{Kind: KindInt, Int: n}
}

// StringValue builds a byte-string Value.
func StringValue(s []byte) *Value {
	return &Value{Kind: KindString, Str: s}
}

// ListValue builds a list Value from its elements.
func ListValue(items ...*Value) *Value {
	return &Value{Kind: KindList, List: items}
}

// NewDict builds an empty dictionary Value.
func NewDict() *Value {
	return &Value{Kind: KindDict, Dict: make(map[string]*Value)}
}

// Set inserts key/val into a dictionary Value, recording insertion order.
func (v *Value) Set(key string, val *Value) {
	if _, exists := v.Dict[key]; !exists {
		v.Keys = append(v.Keys, key)
	}
	v.Dict[key] = val
}

// Get looks up key in a dictionary Value.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind != KindDict {
		return nil, false
	}
	val, ok := v.Dict[key]
	return val, ok
}

// Equal reports whether two Values represent the same bencode value,
// independent of dictionary key-insertion order. Used by the round-trip
// property tests (decode(encode(v)) == v).
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == other.Int
	case KindString:
		return string(v.Str) == string(other.Str)
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.Dict) != len(other.Dict) {
			return false
		}
		for k, val := range v.Dict {
			ov, ok := other.Dict[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
