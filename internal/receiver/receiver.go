// Package receiver implements the acknowledging side of the stop-and-wait
// link: decode, deliver, ack. Malformed datagrams are discarded without a
// reply. Duplicate DATA arrivals (a retransmission whose ACK was lost) are
// delivered and acknowledged again; there is no deduplication.
package receiver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/okabre/sawlink/internal/protocol"
	"github.com/okabre/sawlink/internal/util"
)

// DeliverFunc receives every decoded DATA payload, in arrival order.
type DeliverFunc func(seq uint32, payload []byte)

// Engine serves one listening UDP socket. All processing for one datagram
// completes before the next read, so no locking is needed.
type Engine struct {
	conn    *net.UDPConn
	deliver DeliverFunc
}

// New creates an Engine delivering payloads to deliver. The engine does not
// own conn; closing it is the caller's job.
func New(conn *net.UDPConn, deliver DeliverFunc) *Engine {
	return &Engine{conn: conn, deliver: deliver}
}

// Run reads datagrams until ctx is cancelled. Per-datagram errors are
// logged and isolated to that datagram; only cancellation ends the loop.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 2048)
	for {
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			util.LogError("recv: %v", err)
			continue
		}
		e.receiveOne(buf[:n], addr)
	}
}

// receiveOne handles a single inbound datagram to completion.
func (e *Engine) receiveOne(data []byte, from *net.UDPAddr) {
	msg, err := protocol.Decode(data)
	if err != nil {
		// No reply for malformed input.
		util.LogWarning("discarding datagram from %s: %v", from, err)
		return
	}

	if msg.Kind != protocol.KindData {
		util.LogWarning("unexpected message kind %d from %s (seq=%d)", msg.Kind, from, msg.Seq)
		return
	}

	util.LogInfo("RECV: seq=%d from=%s len=%d", msg.Seq, from, len(msg.Payload))
	e.deliver(msg.Seq, msg.Payload)
	util.Stats.MsgsDelivered.Add(1)

	// Best-effort ACK: the retry responsibility is entirely the sender's.
	var abuf [protocol.HeaderSize]byte
	n, err := protocol.Encode(protocol.NewAck(msg.Seq), abuf[:])
	if err != nil {
		util.LogError("encode ACK seq=%d: %v", msg.Seq, err)
		return
	}
	if _, err := e.conn.WriteToUDP(abuf[:n], from); err != nil {
		util.LogError("ACK send failed: seq=%d to=%s: %v", msg.Seq, from, err)
		return
	}
	util.Stats.AcksSent.Add(1)
	util.LogInfo("ACK_SEND: seq=%d to=%s", msg.Seq, from)
}
