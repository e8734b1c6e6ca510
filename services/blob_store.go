package services

import (
	"fmt"
	"os"
	"path/filepath"

	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/utils"

	"github.com/google/uuid"
)

// BlobStore keeps the original uploads on disk, brotli-compressed, so a
// document can be re-ingested or audited after the fact. Blob loss is never
// fatal to the pipeline: the retrievable state lives in mongo.
type BlobStore struct {
	baseDir string
}

func NewBlobStore(baseDir string) (*BlobStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// Save writes the compressed blob under a fresh unique name and returns its
// path relative to the base directory.
func (b *BlobStore) Save(nodeID string, content []byte) (string, error) {
	compressed, err := utils.CompressBrotli(content)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(b.baseDir, nodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create node dir: %w", err)
	}

	relPath := filepath.Join(nodeID, uuid.NewString()+".br")
	if err := os.WriteFile(filepath.Join(b.baseDir, relPath), compressed, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return relPath, nil
}

// Load reads and decompresses a stored blob.
func (b *BlobStore) Load(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.baseDir, relPath))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return utils.DecompressBrotli(data)
}

// Remove deletes stored blobs best-effort; missing files and IO errors are
// logged, not returned.
func (b *BlobStore) Remove(relPaths ...string) {
	for _, relPath := range relPaths {
		if relPath == "" {
			continue
		}
		if err := os.Remove(filepath.Join(b.baseDir, relPath)); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove blob", "path", relPath, "error", err)
		}
	}
}
