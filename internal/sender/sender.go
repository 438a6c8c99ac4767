// Package sender implements the reliable side of the stop-and-wait link:
// one message in flight, retransmitted on a timer until acknowledged or the
// retry budget runs out.
package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/okabre/sawlink/internal/config"
	"github.com/okabre/sawlink/internal/protocol"
	"github.com/okabre/sawlink/internal/util"
)

// Failure reports a message that exhausted its retry budget without a
// matching acknowledgment. The process continues; retrying further is the
// caller's decision.
type Failure struct {
	Seq      uint32
	Attempts int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("message seq=%d lost after %d attempts", f.Seq, f.Attempts)
}

// Engine drives reliable sends over a single unconnected UDP socket.
// It is stop-and-wait: Send must not be called concurrently, and a new
// sequence number is never issued until the previous send concluded.
type Engine struct {
	conn *net.UDPConn
	dest *net.UDPAddr
	cfg  config.Sender
	seq  *SeqGen
}

// New validates cfg and creates an Engine sending to dest over conn.
// The engine does not own conn; closing it is the caller's job.
func New(conn *net.UDPConn, dest *net.UDPAddr, cfg config.Sender) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{conn: conn, dest: dest, cfg: cfg, seq: NewSeqGen()}, nil
}

// Send transmits payload reliably: encode once, then up to MaxRetries
// rounds of transmit-and-wait. A timeout, an undecodable reply, a non-ACK
// reply and a sequence mismatch all consume one attempt and trigger a
// retransmission of the same datagram. Returns nil on a matching ACK,
// *Failure when the budget is exhausted, or ctx.Err() when cancelled.
func (e *Engine) Send(ctx context.Context, payload []byte) error {
	msg, err := protocol.NewData(e.seq.Next(), payload)
	if err != nil {
		return err
	}

	var buf [protocol.MaxDatagram]byte
	n, err := protocol.Encode(msg, buf[:])
	if err != nil {
		return err
	}
	packet := buf[:n]

	// Unblock the blocking read below when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		e.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	defer e.conn.SetReadDeadline(time.Time{})

	var reply [protocol.MaxDatagram]byte
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		util.Stats.Attempts.Add(1)
		if _, err := e.conn.WriteToUDP(packet, e.dest); err != nil {
			util.LogError("SEND failed: seq=%d attempt=%d: %v", msg.Seq, attempt, err)
			continue
		}
		util.LogInfo("SEND: seq=%d attempt=%d len=%d", msg.Seq, attempt, len(msg.Payload))

		e.conn.SetReadDeadline(time.Now().Add(e.cfg.Timeout))
		rn, _, err := e.conn.ReadFromUDP(reply[:])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				util.LogWarning("TIMEOUT: seq=%d attempt=%d", msg.Seq, attempt)
			} else {
				util.LogError("RECV failed: seq=%d attempt=%d: %v", msg.Seq, attempt, err)
			}
			continue
		}

		ack, err := protocol.Decode(reply[:rn])
		if err != nil {
			util.LogWarning("bad reply: seq=%d attempt=%d: %v", msg.Seq, attempt, err)
			continue
		}
		if ack.Kind != protocol.KindAck || ack.Seq != msg.Seq {
			util.LogWarning("unexpected reply: kind=%d seq=%d (want ACK seq=%d)",
				ack.Kind, ack.Seq, msg.Seq)
			continue
		}

		util.LogInfo("ACK_RECV: seq=%d", msg.Seq)
		util.Stats.AcksRecv.Add(1)
		util.Stats.MsgsSent.Add(1)
		return nil
	}

	util.Stats.MsgsLost.Add(1)
	util.LogError("FAILED: seq=%d after %d attempts", msg.Seq, e.cfg.MaxRetries)
	return &Failure{Seq: msg.Seq, Attempts: e.cfg.MaxRetries}
}
