package relay_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabre/sawlink/internal/relay"
)

func TestCaptureWritesPcapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)

	capture := relay.NewCapture(f)
	capture.Dump([]byte("first datagram"))
	capture.Dump([]byte("second datagram"))
	require.NoError(t, capture.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// pcap global header (24 bytes) plus two records.
	require.Greater(t, len(data), 24)
	assert.Equal(t, []byte{0xd4, 0xc3, 0xb2, 0xa1}, data[:4], "pcap magic")
	// Link type field (little endian): DLT_USER0, bare datagram payloads.
	assert.Equal(t, []byte{147, 0, 0, 0}, data[20:24], "link type")
}

func TestCaptureCloseIsIdempotent(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "relay.pcap"))
	require.NoError(t, err)

	capture := relay.NewCapture(f)
	capture.Dump([]byte("one"))
	require.NoError(t, capture.Close())
	require.NoError(t, capture.Close())
}
