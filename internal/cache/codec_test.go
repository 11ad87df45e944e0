package cache

import (
	"bytes"
	"testing"
)

func TestCodecSmallPayloadStaysRaw(t *testing.T) {
	data := []byte(`{"small":true}`)
	stored, err := encodePayload(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if stored[0] != codecRaw {
		t.Fatalf("marker = 0x%02x, want raw", stored[0])
	}

	got, err := decodePayload(stored)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: %s", got)
	}
}

func TestCodecLargePayloadCompressed(t *testing.T) {
	data := bytes.Repeat([]byte(`{"row":"aaaaaaaaaaaaaaaa"},`), 500)
	stored, err := encodePayload(data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if stored[0] != codecBrotli {
		t.Fatalf("marker = 0x%02x, want brotli", stored[0])
	}
	if len(stored) >= len(data) {
		t.Fatalf("compression did not shrink payload: %d >= %d", len(stored), len(data))
	}

	got, err := decodePayload(stored)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch")
	}
}

func TestCodecUnknownMarker(t *testing.T) {
	if _, err := decodePayload([]byte{0x7f, 1, 2, 3}); err == nil {
		t.Fatal("expected error for unknown marker")
	}
}

func TestCodecEmpty(t *testing.T) {
	got, err := decodePayload(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
