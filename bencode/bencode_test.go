package bencode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorent/bterrors"
)

func TestDecodeInt(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"i42e", 42},
		{"i-3e", -3},
		{"i0e", 0},
	}
	for _, c := range cases {
		v, rest, err := Decode([]byte(c.in))
		require.NoError(t, err)
		assert.Equal(t, KindInt, v.Kind)
		assert.Equal(t, c.want, v.Int)
		assert.Empty(t, rest)
	}
}

func TestDecodeIntRejectsLeadingZero(t *testing.T) {
	_, _, err := Decode([]byte("i00e"))
	require.Error(t, err)
	var malformed *bterrors.MalformedBencode
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, err.Error(), "leading zero")
}

func TestDecodeString(t *testing.T) {
	v, rest, err := Decode([]byte("5:hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(v.Str))
	assert.Empty(t, rest)

	v, _, err = Decode([]byte("0:"))
	require.NoError(t, err)
	assert.Equal(t, "", string(v.Str))

	_, _, err = Decode([]byte("3:ab"))
	assert.Error(t, err)
}

func TestDecodeList(t *testing.T) {
	v, _, err := Decode([]byte("li1ei2ee"))
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind)
	require.Len(t, v.List, 2)
	assert.Equal(t, int64(1), v.List[0].Int)
	assert.Equal(t, int64(2), v.List[1].Int)

	v, _, err = Decode([]byte("le"))
	require.NoError(t, err)
	assert.Empty(t, v.List)
}

func TestDecodeDictSortedKeysRoundTrip(t *testing.T) {
	in := []byte("d3:cow3:moo4:spam4:eggse")
	v, rest, err := Decode(in)
	require.NoError(t, err)
	require.Equal(t, KindDict, v.Kind)
	assert.Empty(t, rest)

	cow, ok := v.Get("cow")
	require.True(t, ok)
	assert.Equal(t, "moo", string(cow.Str))

	spam, ok := v.Get("spam")
	require.True(t, ok)
	assert.Equal(t, "eggs", string(spam.Str))

	assert.Equal(t, in, Encode(v))
}

func TestDecodeDictRejectsDuplicateKeys(t *testing.T) {
	_, _, err := Decode([]byte("d3:cow3:moo3:cow3:mooe"))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := NewDict()
	v.Set("cow", StringValue([]byte("moo")))
	v.Set("spam", ListValue(Int64Value(1), Int64Value(2)))

	encoded := Encode(v)
	decoded, rest, err := Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, v.Equal(decoded))
}

func TestMarshalUnmarshalStruct(t *testing.T) {
	type inner struct {
		Pieces      string `bencode:"pieces"`
		PieceLength int64  `bencode:"piece length"`
		Length      int64  `bencode:"length"`
		Name        string `bencode:"name"`
	}
	in := inner{Pieces: "01234567890123456789", PieceLength: 32768, Length: 92063, Name: "sample.txt"}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out inner
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalRejectsTypeMismatch(t *testing.T) {
	var n int
	err := Unmarshal([]byte("3:abc"), &n)
	assert.Error(t, err)
}
