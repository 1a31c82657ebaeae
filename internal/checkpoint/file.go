package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/trending-crawler/internal/storage/local"
)

// FileBackend keeps the checkpoint document in a local file. Writes go to a
// temp file in the same directory and are renamed over the target.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend rooted at path.
func NewFileBackend(path string) (*FileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	return &FileBackend{path: path}, nil
}

// Path returns the checkpoint file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Get reads the checkpoint file.
func (b *FileBackend) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return data, nil
}

// Put atomically replaces the checkpoint file.
func (b *FileBackend) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if err := local.WriteFileAtomic(b.path, data); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	return nil
}
