package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestBrotliRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("retrievable document content ", 200))

	compressed, err := CompressBrotli(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("repetitive text did not shrink: %d -> %d", len(original), len(compressed))
	}

	decompressed, err := DecompressBrotli(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Error("round trip lost data")
	}
}

func TestBrotliEmptyInput(t *testing.T) {
	out, err := CompressBrotli(nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty compress = %v, %v", out, err)
	}
	out, err = DecompressBrotli(nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty decompress = %v, %v", out, err)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("different bytes"))

	if a != b {
		t.Error("identical input hashed differently")
	}
	if a == c {
		t.Error("different input collided")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
