// Package fetch drives a single ACTIVE peer session through the
// block-pipelined Request/Piece exchange for one piece, verifying the
// assembled buffer against its expected SHA-1 hash.
package fetch

import (
	"crypto/sha1"
	"time"

	"github.com/rs/zerolog/log"

	"gorent/bterrors"
	"gorent/peer"
)

// BlockSize is the per-block request size, 16 KiB.
const BlockSize = 1 << 14

// MaxBacklog is the recommended pipeline depth: the fetcher may have
// this many Request messages outstanding at once before it must drain
// a Piece reply.
const MaxBacklog = 5

// readTimeout bounds how long the fetcher waits for any single Piece
// reply before declaring the session disconnected.
const readTimeout = 30 * time.Second

// PieceSize returns the actual byte length of piece index for a
// torrent with the given total length and nominal piece length.
func PieceSize(index int, pieceLength, totalLength int64) int64 {
	remaining := totalLength - int64(index)*pieceLength
	if remaining < pieceLength {
		return remaining
	}
	return pieceLength
}

type pendingRequest struct {
	begin  int
	length int
}

// Piece drives sess through a full block-pipelined download of piece
// index (whose size is size and whose content must hash to
// expectedHash), and returns the assembled bytes.
//
// Requests are pipelined up to MaxBacklog deep; blocks are copied into
// the destination buffer by their begin offset rather than trusted to
// arrive in order, so out-of-order Piece replies are handled
// correctly.
func Piece(sess *peer.Session, index int, size int64, expectedHash [20]byte) ([]byte, error) {
	buf := make([]byte, size)
	var requested, received int
	var pending []pendingRequest

	for received < len(buf) {
		for len(pending) < MaxBacklog && requested < len(buf) {
			length := BlockSize
			if requested+length > len(buf) {
				length = len(buf) - requested
			}
			if err := sess.SendRequest(index, requested, length); err != nil {
				return nil, err
			}
			pending = append(pending, pendingRequest{begin: requested, length: length})
			requested += length
		}

		msg, err := sess.ReadMessage(time.Now().Add(readTimeout))
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue // keep-alive
		}
		if msg.ID == peer.MsgChoke {
			return nil, bterrors.NewPeerError(bterrors.ChokedMidStream, sess.Addr(), nil)
		}
		if msg.ID != peer.MsgPiece {
			continue // Have/Unchoke noise is tolerated mid-download
		}

		n, err := peer.ParsePiece(index, buf, msg)
		if err != nil {
			return nil, bterrors.NewPeerError(bterrors.UnexpectedMessage, sess.Addr(), err)
		}
		received += n
		pending = dequeueFulfilled(pending, msg)
	}

	sum := sha1.Sum(buf)
	if sum != expectedHash {
		log.Warn().Int("piece", index).Str("peer", sess.Addr()).Msg("piece hash mismatch")
		return nil, bterrors.NewPeerError(bterrors.PieceHashMismatch, sess.Addr(), nil)
	}
	return buf, nil
}

// dequeueFulfilled removes the pendingRequest matching the begin
// offset carried by msg's payload, if present. Payload layout is
// validated by the caller via ParsePiece before this is invoked.
func dequeueFulfilled(pending []pendingRequest, msg *peer.Message) []pendingRequest {
	if len(msg.Payload) < 8 {
		return pending
	}
	begin := int(uint32(msg.Payload[4])<<24 | uint32(msg.Payload[5])<<16 | uint32(msg.Payload[6])<<8 | uint32(msg.Payload[7]))
	for i, p := range pending {
		if p.begin == begin {
			return append(pending[:i], pending[i+1:]...)
		}
	}
	return pending
}
