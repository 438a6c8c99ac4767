package sender

import "sync/atomic"

// SeqGen is an atomic monotonically increasing sequence number generator.
// Sequence numbers are assigned once per message, never per retry; retries
// reuse the number drawn at send entry.
type SeqGen struct {
	next atomic.Uint32
}

// NewSeqGen creates a sequence generator. The first call to Next returns 0.
func NewSeqGen() *SeqGen {
	return &SeqGen{}
}

// Next returns the next sequence number.
func (s *SeqGen) Next() uint32 {
	return s.next.Add(1) - 1
}
