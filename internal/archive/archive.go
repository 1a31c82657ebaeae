// Package archive uploads run artifacts to a blob store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// Archiver copies local artifacts under <prefix>/<run_id>/.
type Archiver struct {
	store  crawler.BlobStore
	prefix string
	logger *zap.Logger
}

// New constructs an Archiver.
func New(store crawler.BlobStore, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// ObjectPath returns the blob path for a local artifact of a run.
func (a *Archiver) ObjectPath(runID, localPath string) string {
	name := filepath.Base(localPath)
	if a.prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(a.prefix, runID, name)
}

// Upload stores each existing file and returns the resulting URIs. Missing
// files are skipped.
func (a *Archiver) Upload(ctx context.Context, runID string, paths ...string) ([]string, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		uri, err := a.uploadOne(ctx, runID, p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				a.logger.Debug("artifact missing, skipping", zap.String("path", p))
				continue
			}
			return uris, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (a *Archiver) uploadOne(ctx context.Context, runID, localPath string) (string, error) {
	// #nosec G304 -- artifact paths come from operator configuration.
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	objectPath := a.ObjectPath(runID, localPath)
	uri, err := a.store.PutObject(ctx, objectPath, contentType(localPath), f)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", localPath, err)
	}
	a.logger.Info("artifact archived", zap.String("path", localPath), zap.String("uri", uri))
	return uri, nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
