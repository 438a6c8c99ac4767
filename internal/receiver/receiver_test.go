package receiver_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabre/sawlink/internal/protocol"
	"github.com/okabre/sawlink/internal/receiver"
)

type delivery struct {
	seq     uint32
	payload string
}

func newConn(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// startReceiver runs an Engine until the test ends and returns its address
// plus the stream of delivered payloads.
func startReceiver(t *testing.T) (*net.UDPAddr, <-chan delivery) {
	t.Helper()
	conn := newConn(t)
	delivered := make(chan delivery, 16)

	eng := receiver.New(conn, func(seq uint32, payload []byte) {
		delivered <- delivery{seq: seq, payload: string(payload)}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = eng.Run(ctx) }()

	return conn.LocalAddr().(*net.UDPAddr), delivered
}

func sendRaw(t *testing.T, conn *net.UDPConn, dst *net.UDPAddr, data []byte) {
	t.Helper()
	_, err := conn.WriteToUDP(data, dst)
	require.NoError(t, err)
}

func sendMessage(t *testing.T, conn *net.UDPConn, dst *net.UDPAddr, msg *protocol.Message) {
	t.Helper()
	buf := make([]byte, msg.EncodedSize())
	n, err := protocol.Encode(msg, buf)
	require.NoError(t, err)
	sendRaw(t, conn, dst, buf[:n])
}

// readReply reads one datagram with a deadline, returning nil on timeout.
func readReply(t *testing.T, conn *net.UDPConn, wait time.Duration) *protocol.Message {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil
	}
	msg, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	return msg
}

func TestDataIsDeliveredAndAcked(t *testing.T) {
	addr, delivered := startReceiver(t)
	client := newConn(t)

	data, err := protocol.NewData(7, []byte("hello"))
	require.NoError(t, err)
	sendMessage(t, client, addr, data)

	select {
	case d := <-delivered:
		assert.Equal(t, uint32(7), d.seq)
		assert.Equal(t, "hello", d.payload)
	case <-time.After(time.Second):
		t.Fatal("payload was not delivered")
	}

	ack := readReply(t, client, time.Second)
	require.NotNil(t, ack, "expected an ACK")
	assert.Equal(t, protocol.KindAck, ack.Kind)
	assert.Equal(t, uint32(7), ack.Seq)
	assert.Empty(t, ack.Payload)
}

func TestMalformedDatagramGetsNoReply(t *testing.T) {
	addr, delivered := startReceiver(t)
	client := newConn(t)

	// Bad magic: structurally plausible otherwise.
	sendRaw(t, client, addr, []byte{0xDE, 0xAD, 0x01, 0, 0, 0, 1, 0, 0})
	// Truncated header.
	sendRaw(t, client, addr, []byte{0x55, 0xAA, 0x01})

	assert.Nil(t, readReply(t, client, 150*time.Millisecond), "malformed input must not be answered")
	assert.Empty(t, delivered)
}

func TestAckToReceiverIsIgnored(t *testing.T) {
	addr, delivered := startReceiver(t)
	client := newConn(t)

	sendMessage(t, client, addr, protocol.NewAck(3))

	assert.Nil(t, readReply(t, client, 150*time.Millisecond), "a receiver never acknowledges an ACK")
	assert.Empty(t, delivered)
}

func TestDuplicateDataIsRedeliveredAndReacked(t *testing.T) {
	addr, delivered := startReceiver(t)
	client := newConn(t)

	data, err := protocol.NewData(5, []byte("again"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		sendMessage(t, client, addr, data)

		select {
		case d := <-delivered:
			assert.Equal(t, uint32(5), d.seq)
			assert.Equal(t, "again", d.payload)
		case <-time.After(time.Second):
			t.Fatalf("delivery %d missing", i+1)
		}

		ack := readReply(t, client, time.Second)
		require.NotNil(t, ack, "ACK %d missing", i+1)
		assert.Equal(t, uint32(5), ack.Seq)
	}
}
