package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Encode failures.
var (
	ErrBufferTooSmall  = errors.New("buffer too small for encoded message")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum")
)

// Decode failures. All of them mean the datagram is discarded; none are fatal.
var (
	ErrShortDatagram = errors.New("datagram shorter than header")
	ErrBadMagic      = errors.New("bad magic")
	ErrBadLength     = errors.New("declared payload length invalid")
)

// Encode serializes m into buf using network byte order and returns the
// number of bytes written. buf must hold at least m.EncodedSize() bytes.
func Encode(m *Message, buf []byte) (int, error) {
	if len(m.Payload) > MaxPayload {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(m.Payload), MaxPayload)
	}
	size := m.EncodedSize()
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, size, len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = m.Kind
	binary.BigEndian.PutUint32(buf[3:7], m.Seq)
	binary.BigEndian.PutUint16(buf[7:9], uint16(len(m.Payload)))
	copy(buf[HeaderSize:], m.Payload)
	return size, nil
}

// Decode deserializes one datagram into a Message. It rejects datagrams
// shorter than the header, with the wrong magic, or whose declared payload
// length exceeds MaxPayload or the bytes actually present. The payload is
// copied out, never aliased to data.
func Decode(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (need %d)", ErrShortDatagram, len(data), HeaderSize)
	}
	if magic := binary.BigEndian.Uint16(data[0:2]); magic != Magic {
		return nil, fmt.Errorf("%w: 0x%04X", ErrBadMagic, magic)
	}
	m := &Message{
		Kind: data[2],
		Seq:  binary.BigEndian.Uint32(data[3:7]),
	}
	plen := int(binary.BigEndian.Uint16(data[7:9]))
	if plen > MaxPayload || plen > len(data)-HeaderSize {
		return nil, fmt.Errorf("%w: %d (max %d, remaining %d)", ErrBadLength, plen, MaxPayload, len(data)-HeaderSize)
	}
	if plen > 0 {
		m.Payload = make([]byte, plen)
		copy(m.Payload, data[HeaderSize:HeaderSize+plen])
	}
	return m, nil
}
