package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide message/datagram counter. A process normally
// exercises only one group of counters (sender, receiver or relay).
var Stats = &stats{}

type stats struct {
	// Sender side.
	MsgsSent atomic.Int64 // messages handed over and acknowledged
	MsgsLost atomic.Int64 // messages that exhausted the retry budget
	Attempts atomic.Int64 // transmissions, retries included
	AcksRecv atomic.Int64 // matching acknowledgments observed

	// Receiver side.
	MsgsDelivered atomic.Int64 // DATA payloads handed to the consumer
	AcksSent      atomic.Int64 // acknowledgments transmitted

	// Relay side.
	Forwarded atomic.Int64 // datagrams relayed to the other side
	Dropped   atomic.Int64 // datagrams discarded by policy or unroutable
	Delayed   atomic.Int64 // datagrams held before forwarding
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs activity every
// 10 seconds, skipping idle intervals. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prev [3]int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.MsgsSent.Load() + Stats.MsgsDelivered.Load()
				fwd := Stats.Forwarded.Load()
				drop := Stats.Dropped.Load() + Stats.MsgsLost.Load()

				if sent != prev[0] || fwd != prev[1] || drop != prev[2] {
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"delivered: %d | forwarded: %d | lost/dropped: %d | attempts: %d",
						sent, fwd, drop, Stats.Attempts.Load()))
				}
				prev = [3]int64{sent, fwd, drop}

			case <-ctx.Done():
				return
			}
		}
	}()
}
