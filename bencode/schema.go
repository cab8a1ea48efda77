package bencode

import (
	"fmt"
	"reflect"
	"strings"

	"gorent/bterrors"
)

// Marshal serializes v, a Go value, into canonical bencode using
// struct tags of the form `bencode:"name"`. It is the schema-directed
// counterpart to Encode — application types go in, bytes come out,
// without an intermediate Value the caller has to build by hand.
func Marshal(v interface{}) ([]byte, error) {
	val, err := toValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return Encode(val), nil
}

func toValue(rv reflect.Value) (*Value, error) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return StringValue(nil), nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int64Value(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int64Value(int64(rv.Uint())), nil
	case reflect.String:
		return StringValue([]byte(rv.String())), nil
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(out), rv)
			return StringValue(out), nil
		}
		return arrayOrSliceToList(rv)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return StringValue(append([]byte{}, rv.Bytes()...)), nil
		}
		return arrayOrSliceToList(rv)
	case reflect.Map:
		dict := NewDict()
		keys := rv.MapKeys()
		for _, k := range keys {
			item, err := toValue(rv.MapIndex(k))
			if err != nil {
				return nil, err
			}
			dict.Set(fmt.Sprint(k.Interface()), item)
		}
		return dict, nil
	case reflect.Struct:
		return structToValue(rv)
	default:
		return nil, fmt.Errorf("bencode: unsupported type %s", rv.Type())
	}
}

func arrayOrSliceToList(rv reflect.Value) (*Value, error) {
	items := make([]*Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := toValue(rv.Index(i))
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return &Value{Kind: KindList, List: items}, nil
}

func structToValue(rv reflect.Value) (*Value, error) {
	dict := NewDict()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		name, omitEmpty, skip := fieldTag(field)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && isEmptyValue(fv) {
			continue
		}
		item, err := toValue(fv)
		if err != nil {
			return nil, err
		}
		dict.Set(name, item)
	}
	return dict, nil
}

func fieldTag(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("bencode")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = field.Name
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Unmarshal decodes data and assigns it into out, a pointer to a Go
// value, using the same `bencode:"name"` struct tags as Marshal.
func Unmarshal(data []byte, out interface{}) error {
	v, _, err := Decode(data)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bencode: Unmarshal requires a non-nil pointer, got %T", out)
	}
	return assign(v, rv.Elem())
}

func assign(v *Value, rv reflect.Value) error {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Interface:
		rv.Set(reflect.ValueOf(ToAny(v)))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind != KindInt {
			return typeMismatch("integer", v)
		}
		rv.SetInt(v.Int)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Kind != KindInt {
			return typeMismatch("integer", v)
		}
		rv.SetUint(uint64(v.Int))
		return nil
	case reflect.String:
		if v.Kind != KindString {
			return typeMismatch("byte string", v)
		}
		rv.SetString(string(v.Str))
		return nil
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if v.Kind != KindString {
				return typeMismatch("byte string", v)
			}
			if len(v.Str) != rv.Len() {
				return bterrors.NewMalformedTorrent(
					fmt.Sprintf("expected %d-byte string, got %d", rv.Len(), len(v.Str)), nil)
			}
			reflect.Copy(rv, reflect.ValueOf(v.Str))
			return nil
		}
		return assignList(v, rv)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if v.Kind != KindString {
				return typeMismatch("byte string", v)
			}
			rv.SetBytes(append([]byte{}, v.Str...))
			return nil
		}
		return assignList(v, rv)
	case reflect.Map:
		if v.Kind != KindDict {
			return typeMismatch("dictionary", v)
		}
		m := reflect.MakeMapWithSize(rv.Type(), len(v.Dict))
		for _, k := range v.Keys {
			elem := reflect.New(rv.Type().Elem()).Elem()
			if err := assign(v.Dict[k], elem); err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(k), elem)
		}
		rv.Set(m)
		return nil
	case reflect.Struct:
		if v.Kind != KindDict {
			return typeMismatch("dictionary", v)
		}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			name, _, skip := fieldTag(field)
			if skip {
				continue
			}
			item, ok := v.Dict[name]
			if !ok {
				continue
			}
			if err := assign(item, rv.Field(i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("bencode: unsupported type %s", rv.Type())
	}
}

func assignList(v *Value, rv reflect.Value) error {
	if v.Kind != KindList {
		return typeMismatch("list", v)
	}
	if rv.Kind() == reflect.Array {
		if len(v.List) != rv.Len() {
			return fmt.Errorf("bencode: expected array of length %d, got %d", rv.Len(), len(v.List))
		}
		for i, item := range v.List {
			if err := assign(item, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	slice := reflect.MakeSlice(rv.Type(), len(v.List), len(v.List))
	for i, item := range v.List {
		if err := assign(item, slice.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(slice)
	return nil
}

func typeMismatch(want string, v *Value) error {
	return fmt.Errorf("bencode: expected %s, got kind %d", want, v.Kind)
}
