package services

import (
	"bytes"
	"testing"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	content := []byte("original uploaded bytes")
	path, err := store.Save("node1", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded, content) {
		t.Error("round trip lost data")
	}

	store.Remove(path)
	if _, err := store.Load(path); err == nil {
		t.Error("blob still readable after removal")
	}

	// Removing again must not panic or error out loud.
	store.Remove(path, "")
}
