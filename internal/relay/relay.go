// Package relay implements the man-in-the-middle impairment proxy: one UDP
// socket relaying opaque datagrams between a single near peer and one fixed
// far peer, dropping and delaying traffic per direction according to
// configured policies. The relay never decodes the reliable-delivery
// protocol.
package relay

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/okabre/sawlink/internal/impair"
	"github.com/okabre/sawlink/internal/util"
)

// Engine relays between the near side (whoever talked to us last) and the
// far side (fixed target address).
//
// Delayed datagrams are forwarded from per-packet timer goroutines, so the
// relay keeps servicing the socket during a hold and delayed datagrams may
// leave out of arrival order. Because of those goroutines the near-peer
// binding is mutex-guarded, last writer wins.
type Engine struct {
	conn   *net.UDPConn
	far    *net.UDPAddr
	farKey netip.AddrPort // normalized for source comparison
	toFar  impair.Policy  // near → far
	toNear impair.Policy  // far → near
	rng    *rand.Rand     // drawn from the Run goroutine only
	trace  *Capture       // optional, may be nil

	mu   sync.Mutex
	near *net.UDPAddr // single-slot peer binding, nil until first near datagram

	inflight sync.WaitGroup // delayed forwards not yet transmitted
}

// New creates a relay forwarding between its socket and far. toFar applies
// to traffic flowing toward far, toNear to traffic flowing back. trace may
// be nil to disable capture.
func New(conn *net.UDPConn, far *net.UDPAddr, toFar, toNear impair.Policy, trace *Capture) *Engine {
	return &Engine{
		conn:   conn,
		far:    far,
		farKey: normalize(far.AddrPort()),
		toFar:  toFar,
		toNear: toNear,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		trace:  trace,
	}
}

// Run reads datagrams until ctx is cancelled, then waits for any delayed
// forwards still in flight. A forward already past its drop/delay decision
// is transmitted before Run returns; a forward still in its delay wait is
// transmitted immediately on shutdown.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 2048)
	for {
		n, src, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			util.LogError("recv: %v", err)
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		e.relayOne(ctx, pkt, src)
	}

	e.inflight.Wait()
	return nil
}

// relayOne classifies one datagram, applies the direction's policy and
// forwards or drops it. The drop and delay draws happen here, on the read
// goroutine; only the timed wait runs concurrently.
func (e *Engine) relayOne(ctx context.Context, pkt []byte, src *net.UDPAddr) {
	if e.trace != nil {
		e.trace.Dump(pkt)
	}

	var dir string
	var policy impair.Policy
	var dst *net.UDPAddr

	if e.fromFar(src) {
		dir, policy = "far->near", e.toNear
		dst = e.boundNear()
		if dst == nil {
			// Far side replied before any near-side datagram was ever seen.
			util.LogWarning("%s: no near peer recorded yet, dropping %d bytes from %s", dir, len(pkt), src)
			util.Stats.Dropped.Add(1)
			return
		}
	} else {
		dir, policy = "near->far", e.toFar
		dst = e.far
		e.bindNear(src)
	}

	util.LogDebug("%s: received %d bytes from %s", dir, len(pkt), src)

	if policy.ShouldDrop(e.rng) {
		util.LogInfo("%s: DROPPED %d bytes", dir, len(pkt))
		util.Stats.Dropped.Add(1)
		return
	}

	delay := policy.DelayFor(e.rng)
	if delay <= 0 {
		e.forward(dir, pkt, dst)
		return
	}

	util.LogInfo("%s: DELAYED %v", dir, delay)
	util.Stats.Delayed.Add(1)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			// Shutdown during the hold: forward immediately.
		}
		e.forward(dir, pkt, dst)
	}()
}

func (e *Engine) forward(dir string, pkt []byte, dst *net.UDPAddr) {
	if _, err := e.conn.WriteToUDP(pkt, dst); err != nil {
		util.LogError("%s: forward to %s failed: %v", dir, dst, err)
		return
	}
	util.Stats.Forwarded.Add(1)
	util.LogInfo("%s: forwarded %d bytes to %s", dir, len(pkt), dst)
}

// fromFar reports whether src is the configured far peer. This is plain
// address/port equality, not a connection concept.
func (e *Engine) fromFar(src *net.UDPAddr) bool {
	return normalize(src.AddrPort()) == e.farKey
}

// bindNear overwrites the single-slot near-peer binding.
func (e *Engine) bindNear(src *net.UDPAddr) {
	e.mu.Lock()
	e.near = src
	e.mu.Unlock()
}

// boundNear returns the most recently seen near peer, or nil if none yet.
func (e *Engine) boundNear() *net.UDPAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.near
}

// normalize strips the IPv4-in-IPv6 mapping so that the same peer compares
// equal regardless of the socket family it was observed through.
func normalize(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
