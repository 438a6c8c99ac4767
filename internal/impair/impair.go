// Package impair decides, per datagram, whether an artificially degraded
// link drops it and how long it holds it. Decisions are pure draws against
// a caller-supplied random source; the package never touches sockets.
package impair

import (
	"math/rand/v2"
	"time"
)

// Policy describes the impairment applied to one traffic direction.
// The two directions of a relay hold independent Policy values.
type Policy struct {
	DropPct  int           // chance a datagram is discarded, 0..100
	DelayPct int           // chance a surviving datagram is held, 0..100
	DelayMin time.Duration // lower bound of a triggered hold
	DelayMax time.Duration // upper bound of a triggered hold
}

// ShouldDrop draws once and reports whether the datagram is discarded.
// 0 never drops and 100 always drops, with no draw consumed at either bound.
func (p Policy) ShouldDrop(rng *rand.Rand) bool {
	if p.DropPct <= 0 {
		return false
	}
	if p.DropPct >= 100 {
		return true
	}
	return rng.IntN(100) < p.DropPct
}

// DelayFor draws whether the datagram is held and, if so, for how long:
// a uniform duration in [DelayMin, DelayMax] inclusive. DelayMin >= DelayMax
// yields exactly DelayMin. Zero means forward immediately.
func (p Policy) DelayFor(rng *rand.Rand) time.Duration {
	if p.DelayPct <= 0 {
		return 0
	}
	if p.DelayPct < 100 && rng.IntN(100) >= p.DelayPct {
		return 0
	}
	if p.DelayMin >= p.DelayMax {
		return p.DelayMin
	}
	return p.DelayMin + time.Duration(rng.Int64N(int64(p.DelayMax-p.DelayMin)+1))
}
