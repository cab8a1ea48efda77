package peer

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageID identifies the kind of a peer-wire message.
type MessageID uint8

const (
	MsgChoke         MessageID = 0
	MsgUnchoke       MessageID = 1
	MsgInterested    MessageID = 2
	MsgNotInterested MessageID = 3
	MsgHave          MessageID = 4
	MsgBitfield      MessageID = 5
	MsgRequest       MessageID = 6
	MsgPiece         MessageID = 7
	MsgCancel        MessageID = 8
)

func (id MessageID) String() string {
	switch id {
	case MsgChoke:
		return "choke"
	case MsgUnchoke:
		return "unchoke"
	case MsgInterested:
		return "interested"
	case MsgNotInterested:
		return "not interested"
	case MsgHave:
		return "have"
	case MsgBitfield:
		return "bitfield"
	case MsgRequest:
		return "request"
	case MsgPiece:
		return "piece"
	case MsgCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Message is a framed peer-wire message: length-prefix and id are
// handled by Serialize/ReadMessage, Payload is the type-specific body.
type Message struct {
	ID      MessageID
	Payload []byte
}

// Serialize encodes m as length:u32-be || id:u8 || payload. A nil
// Message serializes as a zero-length keep-alive frame.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// ReadMessage reads one framed message from r. A length == 0 frame is a
// keep-alive and is reported as a nil Message with no error.
func ReadMessage(r io.Reader) (*Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &Message{ID: MessageID(body[0]), Payload: body[1:]}, nil
}

func formatHave(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: MsgHave, Payload: payload}
}

func formatRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: MsgRequest, Payload: payload}
}

// ParseHave validates and extracts a Have message's piece index.
func ParseHave(msg *Message) (int, error) {
	if msg.ID != MsgHave {
		return 0, fmt.Errorf("expected have, got %s", msg.ID)
	}
	if len(msg.Payload) != 4 {
		return 0, fmt.Errorf("have payload length %d, want 4", len(msg.Payload))
	}
	return int(binary.BigEndian.Uint32(msg.Payload)), nil
}

// ParsePiece validates a Piece message and copies its block into buf at
// the message's begin offset.
func ParsePiece(wantIndex int, buf []byte, msg *Message) (n int, err error) {
	if msg.ID != MsgPiece {
		return 0, fmt.Errorf("expected piece, got %s", msg.ID)
	}
	if len(msg.Payload) < 8 {
		return 0, fmt.Errorf("piece payload length %d, want >= 8", len(msg.Payload))
	}
	index := int(binary.BigEndian.Uint32(msg.Payload[0:4]))
	if index != wantIndex {
		return 0, fmt.Errorf("piece index %d, want %d", index, wantIndex)
	}
	begin := int(binary.BigEndian.Uint32(msg.Payload[4:8]))
	block := msg.Payload[8:]
	if begin < 0 || begin+len(block) > len(buf) {
		return 0, fmt.Errorf("piece block [%d:%d] out of bounds for buffer of length %d",
			begin, begin+len(block), len(buf))
	}
	copy(buf[begin:], block)
	return len(block), nil
}
