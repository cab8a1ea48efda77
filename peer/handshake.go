package peer

import (
	"fmt"
	"io"
)

const protocolID = "BitTorrent protocol"

// Handshake is the fixed 68-byte frame exchanged before any framed
// message: pstrlen, pstr, 8 reserved zero bytes, info_hash, peer_id.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds a handshake frame for the given info-hash and
// local peer id.
func NewHandshake(infoHash, peerID [20]byte) *Handshake {
	return &Handshake{InfoHash: infoHash, PeerID: peerID}
}

// Serialize encodes the handshake. The 8 reserved bytes are left zero:
// this client advertises no extension-protocol or DHT support.
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, 49+len(protocolID))
	cursor := 0
	buf[cursor] = byte(len(protocolID))
	cursor++
	cursor += copy(buf[cursor:], protocolID)
	cursor += 8 // reserved, left zero
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// ReadHandshake parses a handshake frame from r, validating pstrlen and
// pstr but not the info-hash (the caller compares that against what it
// expects).
func ReadHandshake(r io.Reader) (*Handshake, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	pstrlen := int(lenBuf[0])
	if pstrlen != len(protocolID) {
		return nil, fmt.Errorf("unexpected pstrlen %d, want %d", pstrlen, len(protocolID))
	}

	rest := make([]byte, pstrlen+48)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	if string(rest[:pstrlen]) != protocolID {
		return nil, fmt.Errorf("unexpected protocol string %q", rest[:pstrlen])
	}

	h := &Handshake{}
	cursor := pstrlen + 8 // skip reserved bytes
	copy(h.InfoHash[:], rest[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], rest[cursor:cursor+20])
	return h, nil
}
