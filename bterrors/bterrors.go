// Package bterrors defines the error taxonomy shared across gorent's
// codec, metadata, tracker and peer-protocol packages.
package bterrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedBencode reports a grammar violation found while decoding a
// bencoded byte stream.
type MalformedBencode struct {
	Position int
	Reason   string
}

func (e *MalformedBencode) Error() string {
	return fmt.Sprintf("malformed bencode at byte %d: %s", e.Position, e.Reason)
}

// NewMalformedBencode builds a MalformedBencode error at the given offset.
func NewMalformedBencode(pos int, reason string) error {
	return &MalformedBencode{Position: pos, Reason: reason}
}

// MalformedTorrent reports a missing field, a wrong type, or a pieces
// string whose length is not a multiple of 20 while parsing a .torrent.
type MalformedTorrent struct {
	Reason string
}

func (e *MalformedTorrent) Error() string {
	return fmt.Sprintf("malformed torrent: %s", e.Reason)
}

// NewMalformedTorrent builds a MalformedTorrent error. When cause is
// non-nil, its message is prefixed to the error text; cause itself is
// not reachable through errors.Unwrap or errors.Is.
func NewMalformedTorrent(reason string, cause error) error {
	if cause != nil {
		return errors.Wrap(&MalformedTorrent{Reason: reason}, cause.Error())
	}
	return &MalformedTorrent{Reason: reason}
}

// TrackerError reports a transport or protocol failure while announcing
// to a tracker.
type TrackerError struct {
	Announce string
	Err      error
}

func (e *TrackerError) Error() string {
	return fmt.Sprintf("tracker error announcing to %s: %v", e.Announce, e.Err)
}

func (e *TrackerError) Unwrap() error { return e.Err }

// NewTrackerError wraps cause as a TrackerError for the given announce URL.
func NewTrackerError(announce string, cause error) error {
	return &TrackerError{Announce: announce, Err: errors.WithStack(cause)}
}

// PeerErrorKind enumerates the ways a single peer session can fail.
type PeerErrorKind int

const (
	ConnectFailed PeerErrorKind = iota
	HandshakeFailed
	UnexpectedMessage
	ChokedMidStream
	Disconnected
	PieceHashMismatch
)

func (k PeerErrorKind) String() string {
	switch k {
	case ConnectFailed:
		return "connect failed"
	case HandshakeFailed:
		return "handshake failed"
	case UnexpectedMessage:
		return "unexpected message"
	case ChokedMidStream:
		return "choked mid-stream"
	case Disconnected:
		return "disconnected"
	case PieceHashMismatch:
		return "piece hash mismatch"
	default:
		return "unknown"
	}
}

// PeerError reports a per-session failure against a specific peer.
type PeerError struct {
	Kind PeerErrorKind
	Peer string
	Err  error
}

func (e *PeerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("peer %s: %s: %v", e.Peer, e.Kind, e.Err)
	}
	return fmt.Sprintf("peer %s: %s", e.Peer, e.Kind)
}

func (e *PeerError) Unwrap() error { return e.Err }

// NewPeerError builds a PeerError, wrapping cause (which may be nil).
func NewPeerError(kind PeerErrorKind, peer string, cause error) error {
	return &PeerError{Kind: kind, Peer: peer, Err: cause}
}

// IoError reports a filesystem or socket failure at the OS layer.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NewIoError wraps cause as an IoError describing the failing operation.
func NewIoError(op string, cause error) error {
	return &IoError{Op: op, Err: errors.WithStack(cause)}
}
