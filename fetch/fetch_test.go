package fetch

import (
	"crypto/sha1"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorent/peer"
)

func TestPieceSizeShortensLastPiece(t *testing.T) {
	// Scenario: piece_length=40000, total_length=92063, index=2.
	assert.Equal(t, int64(12063), PieceSize(2, 40000, 92063))
	assert.Equal(t, int64(40000), PieceSize(0, 40000, 92063))
}

// fakePeerConn only embeds a net.Conn and is not used by the tests
// below; the cooperative remote peer is serveFakePeer, which answers
// over an in-memory net.Pipe.
type fakePeerConn struct {
	net.Conn
}

func TestPieceDownloadsAndVerifies(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog, repeated enough to span multiple 16KiB blocks across the pipeline depth boundary for this test case")
	expectedHash := sha1.Sum(content)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sess := &peer.Session{Conn: client, Bitfield: peer.Bitfield{0xFF}}

	go serveFakePeer(t, server, content)

	got, err := Piece(sess, 0, int64(len(content)), expectedHash)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// serveFakePeer answers every Request it receives on conn with the
// corresponding slice of content as a Piece message, until the
// requester stops asking (conn closes).
func serveFakePeer(t *testing.T, conn net.Conn, content []byte) {
	for {
		msg, err := peer.ReadMessage(conn)
		if err != nil {
			return
		}
		if msg == nil || msg.ID != peer.MsgRequest {
			continue
		}
		index := be32(msg.Payload[0:4])
		begin := be32(msg.Payload[4:8])
		length := be32(msg.Payload[8:12])

		block := content[begin : begin+length]
		payload := make([]byte, 8+len(block))
		putBE32(payload[0:4], index)
		putBE32(payload[4:8], begin)
		copy(payload[8:], block)

		pieceMsg := &peer.Message{ID: peer.MsgPiece, Payload: payload}
		if _, err := conn.Write(pieceMsg.Serialize()); err != nil {
			return
		}
	}
}

func be32(b []byte) int {
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}

func putBE32(b []byte, v int) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
