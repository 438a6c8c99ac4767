// Package protocol defines the wire format shared by the sender, receiver
// and the end-to-end tests. The relay never imports it — relayed datagrams
// are opaque.
package protocol

import "fmt"

// Magic is the 16-bit constant opening every datagram. Anything else is
// rejected at decode time.
const Magic uint16 = 0x55AA

// Message kind constants.
const (
	KindData uint8 = 1 // payload-carrying, requires an ACK
	KindAck  uint8 = 2 // zero-payload receipt for one sequence number
)

// HeaderSize is the fixed header size: Magic(2) + Kind(1) + Seq(4) + PayloadLen(2).
const HeaderSize = 9

// MaxPayload is the largest payload a single message may carry.
const MaxPayload = 512

// MaxDatagram is the largest encoded message.
const MaxDatagram = HeaderSize + MaxPayload

// Message is one protocol unit. Magic and the payload-length field exist
// only on the wire; they are derived on encode and checked on decode.
type Message struct {
	Kind    uint8  // KindData or KindAck
	Seq     uint32 // sender-assigned sequence number
	Payload []byte // KindData only; KindAck is always empty
}

// NewData builds a DATA message for seq. The payload is not copied.
func NewData(seq uint32, payload []byte) (*Message, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	return &Message{Kind: KindData, Seq: seq, Payload: payload}, nil
}

// NewAck builds an ACK message echoing seq.
func NewAck(seq uint32) *Message {
	return &Message{Kind: KindAck, Seq: seq}
}

// EncodedSize returns the number of bytes Encode will write for m.
func (m *Message) EncodedSize() int {
	return HeaderSize + len(m.Payload)
}
