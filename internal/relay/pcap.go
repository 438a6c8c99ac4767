package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// captureSnapLen bounds the bytes recorded per datagram. Larger than any
// valid protocol datagram, so captures are never truncated in practice.
const captureSnapLen = 2048

// captureLinkType declares what each record holds. Records are bare UDP
// payloads, not IP packets, so the file uses DLT_USER0 rather than a link
// type pcap tools would try to parse as IPv4/IPv6.
const captureLinkType = layers.LinkType(147)

// Capture writes every datagram the relay receives to a pcap stream via a
// buffered background writer.
type Capture struct {
	cancel context.CancelFunc
	snaps  chan captureSnap
	errch  chan error
	once   sync.Once
	wc     io.WriteCloser
}

type captureSnap struct {
	data []byte
	when time.Time
}

// NewCapture starts a capture writing to wc. Close flushes buffered
// datagrams and closes wc.
func NewCapture(wc io.WriteCloser) *Capture {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Capture{
		cancel: cancel,
		snaps:  make(chan captureSnap, 1024),
		errch:  make(chan error, 1),
		wc:     wc,
	}
	go c.saveLoop(ctx)
	return c
}

// Dump records one datagram. It never blocks the relay's read loop: when
// the writer cannot keep up, the snapshot is silently skipped.
func (c *Capture) Dump(pkt []byte) {
	n := min(len(pkt), captureSnapLen)
	snap := make([]byte, n)
	copy(snap, pkt)
	select {
	case c.snaps <- captureSnap{data: snap, when: time.Now()}:
	default:
	}
}

func (c *Capture) saveLoop(ctx context.Context) {
	w := pcapgo.NewWriter(c.wc)
	if err := w.WriteFileHeader(captureSnapLen, captureLinkType); err != nil {
		c.errch <- err
		return
	}

	write := func(snap captureSnap) error {
		return w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     snap.when,
			CaptureLength: len(snap.data),
			Length:        len(snap.data),
		}, snap.data)
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever is buffered before exiting.
			for {
				select {
				case snap := <-c.snaps:
					if err := write(snap); err != nil {
						c.errch <- err
						return
					}
				default:
					c.errch <- nil
					return
				}
			}
		case snap := <-c.snaps:
			if err := write(snap); err != nil {
				c.errch <- err
				return
			}
		}
	}
}

// Close stops the background writer, waits for it to drain and closes the
// underlying stream.
func (c *Capture) Close() (err error) {
	c.once.Do(func() {
		c.cancel()
		err1 := <-c.errch
		err2 := c.wc.Close()
		err = errors.Join(err1, err2)
	})
	return
}
