package peer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], bytes.Repeat([]byte{0xAB}, 20))
	copy(peerID[:], "-GR0001-123456789012")

	h := NewHandshake(infoHash, peerID)
	data := h.Serialize()
	require.Len(t, data, 68)
	assert.Equal(t, byte(19), data[0])
	assert.Equal(t, "BitTorrent protocol", string(data[1:20]))
	assert.Equal(t, make([]byte, 8), data[20:28])

	got, err := ReadHandshake(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, infoHash, got.InfoHash)
	assert.Equal(t, peerID, got.PeerID)
}

func TestReadHandshakeRejectsBadProtocolString(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(19)
	buf.WriteString("not-the-bittorrent-p")
	buf.Write(make([]byte, 48))

	_, err := ReadHandshake(&buf)
	assert.Error(t, err)
}

func TestMessageSerializeReadRoundTrip(t *testing.T) {
	msg := &Message{ID: MsgRequest, Payload: []byte{0, 0, 0, 1}}
	data := msg.Serialize()

	got, err := ReadMessage(bytes.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, MsgRequest, got.ID)
	assert.Equal(t, msg.Payload, got.Payload)
}

func TestReadMessageKeepAliveIsNil(t *testing.T) {
	data := make([]byte, 4) // length 0
	got, err := ReadMessage(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNilMessageSerializesAsKeepAlive(t *testing.T) {
	var msg *Message
	assert.Equal(t, make([]byte, 4), msg.Serialize())
}

func TestFormatHaveAndParseHave(t *testing.T) {
	msg := formatHave(42)
	index, err := ParseHave(msg)
	require.NoError(t, err)
	assert.Equal(t, 42, index)
}

func TestParseHaveRejectsWrongID(t *testing.T) {
	_, err := ParseHave(&Message{ID: MsgChoke})
	assert.Error(t, err)
}

func TestParsePieceCopiesBlockAtBeginOffset(t *testing.T) {
	buf := make([]byte, 16)
	payload := append([]byte{0, 0, 0, 0, 0, 0, 0, 8}, []byte("ABCDEFGH")...)
	msg := &Message{ID: MsgPiece, Payload: payload}

	n, err := ParsePiece(0, buf, msg)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("ABCDEFGH"), buf[8:16])
	assert.Equal(t, make([]byte, 8), buf[0:8])
}

func TestParsePieceRejectsIndexMismatch(t *testing.T) {
	buf := make([]byte, 8)
	payload := append([]byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte("ABCD")...)
	msg := &Message{ID: MsgPiece, Payload: payload}

	_, err := ParsePiece(0, buf, msg)
	assert.Error(t, err)
}

func TestParsePieceRejectsOutOfBounds(t *testing.T) {
	buf := make([]byte, 4)
	payload := append([]byte{0, 0, 0, 0, 0, 0, 0, 2}, []byte("ABCD")...)
	msg := &Message{ID: MsgPiece, Payload: payload}

	_, err := ParsePiece(0, buf, msg)
	assert.Error(t, err)
}

func TestBitfieldHasIsMSBFirst(t *testing.T) {
	bf := Bitfield([]byte{0x80, 0x00})
	assert.True(t, bf.Has(0))
	assert.False(t, bf.Has(1))
	assert.False(t, bf.Has(8))

	bf2 := Bitfield([]byte{0x01, 0x00})
	assert.True(t, bf2.Has(7))
	assert.False(t, bf2.Has(0))
	assert.False(t, bf2.Has(15))
}

func TestBitfieldHasOutOfRangeIsFalse(t *testing.T) {
	bf := Bitfield([]byte{0xFF})
	assert.False(t, bf.Has(100))
	assert.False(t, bf.Has(-1))
}

func TestBitfieldSetGrowsSlice(t *testing.T) {
	bf := Bitfield([]byte{0x00})
	bf.Set(15)
	require.Len(t, bf, 2)
	assert.True(t, bf.Has(15))
}

func TestMessageIDStringUnknownFallback(t *testing.T) {
	var id MessageID = 200
	assert.Equal(t, "unknown(200)", id.String())
}
