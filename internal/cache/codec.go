package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Stored payloads carry a one-byte marker so the codec can evolve without a
// table migration.
const (
	codecRaw    byte = 0x00
	codecBrotli byte = 0x01
)

// compressThreshold is the payload size above which entries are compressed.
const compressThreshold = 1 << 10

// encodePayload wraps data for storage, brotli-compressing large payloads.
// Compression is skipped when it does not shrink the payload.
func encodePayload(data []byte) ([]byte, error) {
	if len(data) <= compressThreshold {
		return append([]byte{codecRaw}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(codecBrotli)
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	if buf.Len() >= len(data)+1 {
		return append([]byte{codecRaw}, data...), nil
	}
	return buf.Bytes(), nil
}

// decodePayload unwraps a stored payload.
func decodePayload(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	marker, rest := stored[0], stored[1:]
	switch marker {
	case codecRaw:
		return rest, nil
	case codecBrotli:
		data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rest)))
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown payload codec marker 0x%02x", marker)
	}
}
