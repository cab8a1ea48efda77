package peer

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"gorent/bterrors"
)

const (
	dialTimeout      = 3 * time.Second
	handshakeTimeout = 3 * time.Second
	bitfieldTimeout  = 5 * time.Second
)

// Session drives a single peer through the downloader's state machine:
//
//	CONNECTED --handshake OK--> HANDSHAKED
//	HANDSHAKED --recv Bitfield--> READY(bits)
//	READY --send Interested, recv Unchoke--> ACTIVE
//	ACTIVE --loop: Request/Piece--> ACTIVE
//	ACTIVE --error or done--> CLOSED
//
// A Session is owned exclusively by the worker that opened it; it is
// not safe for concurrent use.
type Session struct {
	Conn     net.Conn
	PeerID   [20]byte
	Bitfield Bitfield
	Choked   bool

	addr     string
	infoHash [20]byte
}

// Dial opens a TCP connection to addr, performs the handshake, and
// reads the peer's initial bitfield. The returned session has not yet
// sent Interested — HANDSHAKED/READY, not yet ACTIVE.
func Dial(addr string, infoHash, peerID [20]byte) (*Session, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, bterrors.NewPeerError(bterrors.ConnectFailed, addr, err)
	}

	peerHandshakeID, err := completeHandshake(conn, infoHash, peerID)
	if err != nil {
		conn.Close()
		return nil, bterrors.NewPeerError(bterrors.HandshakeFailed, addr, err)
	}

	bf, err := receiveBitfield(conn)
	if err != nil {
		conn.Close()
		return nil, bterrors.NewPeerError(bterrors.HandshakeFailed, addr, err)
	}

	return &Session{
		Conn:     conn,
		PeerID:   peerHandshakeID,
		Bitfield: bf,
		Choked:   true,
		addr:     addr,
		infoHash: infoHash,
	}, nil
}

func completeHandshake(conn net.Conn, infoHash, peerID [20]byte) ([20]byte, error) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	req := NewHandshake(infoHash, peerID)
	if _, err := conn.Write(req.Serialize()); err != nil {
		return [20]byte{}, err
	}

	resp, err := ReadHandshake(conn)
	if err != nil {
		return [20]byte{}, err
	}
	if !bytes.Equal(resp.InfoHash[:], infoHash[:]) {
		return [20]byte{}, fmt.Errorf("info hash mismatch: expected %x, got %x", infoHash, resp.InfoHash)
	}
	return resp.PeerID, nil
}

func receiveBitfield(conn net.Conn) (Bitfield, error) {
	conn.SetDeadline(time.Now().Add(bitfieldTimeout))
	defer conn.SetDeadline(time.Time{})

	msg, err := ReadMessage(conn)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ID != MsgBitfield {
		return nil, fmt.Errorf("expected bitfield, got %v", msg)
	}
	return Bitfield(msg.Payload), nil
}

// Addr returns the address this session was dialed against, for
// diagnostics and for returning the peer to the download pool.
func (s *Session) Addr() string {
	return s.addr
}

func (s *Session) send(msg *Message) error {
	_, err := s.Conn.Write(msg.Serialize())
	if err != nil {
		return bterrors.NewPeerError(bterrors.Disconnected, s.addr, err)
	}
	return nil
}

// SendInterested tells the peer we want to request pieces from it.
func (s *Session) SendInterested() error {
	return s.send(&Message{ID: MsgInterested})
}

// SendNotInterested tells the peer we no longer want anything from it.
func (s *Session) SendNotInterested() error {
	return s.send(&Message{ID: MsgNotInterested})
}

// SendHave announces that we have finished downloading piece index.
func (s *Session) SendHave(index int) error {
	return s.send(formatHave(index))
}

// SendRequest asks for a block of a piece.
func (s *Session) SendRequest(index, begin, length int) error {
	return s.send(formatRequest(index, begin, length))
}

// ReadMessage reads the next framed message, applying deadline to the
// underlying connection. Keep-alives (nil messages) are returned as-is
// and treated as no-ops by the caller.
func (s *Session) ReadMessage(deadline time.Time) (*Message, error) {
	s.Conn.SetDeadline(deadline)
	defer s.Conn.SetDeadline(time.Time{})

	msg, err := ReadMessage(s.Conn)
	if err != nil {
		return nil, bterrors.NewPeerError(bterrors.Disconnected, s.addr, err)
	}
	return msg, nil
}

// AwaitUnchoke drives READY --send Interested, recv Unchoke--> ACTIVE,
// updating the bitfield in response to any Have messages seen along
// the way. Choke during this phase, or any message other than
// Have/Unchoke/Bitfield, fails the session.
func (s *Session) AwaitUnchoke(deadline time.Time) error {
	if err := s.SendInterested(); err != nil {
		return err
	}
	for {
		msg, err := s.ReadMessage(deadline)
		if err != nil {
			return err
		}
		if msg == nil {
			continue // keep-alive
		}
		switch msg.ID {
		case MsgUnchoke:
			s.Choked = false
			return nil
		case MsgChoke:
			s.Choked = true
			return bterrors.NewPeerError(bterrors.ChokedMidStream, s.addr,
				fmt.Errorf("choked while awaiting unchoke"))
		case MsgHave:
			index, err := ParseHave(msg)
			if err != nil {
				return bterrors.NewPeerError(bterrors.UnexpectedMessage, s.addr, err)
			}
			s.Bitfield.Set(index)
		case MsgBitfield:
			// Some peers resend their bitfield; harmless, ignore.
		default:
			return bterrors.NewPeerError(bterrors.UnexpectedMessage, s.addr,
				fmt.Errorf("unexpected message %s while awaiting unchoke", msg.ID))
		}
	}
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	return s.Conn.Close()
}
