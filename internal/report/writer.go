package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/storage/local"
)

// FileWriter persists the combined report as indented JSON.
type FileWriter struct {
	path string
}

// NewFileWriter returns a writer targeting path.
func NewFileWriter(path string) (*FileWriter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("metrics report path is required")
	}
	return &FileWriter{path: path}, nil
}

// Path returns the report location.
func (w *FileWriter) Path() string {
	return w.path
}

// Write implements crawler.ReportWriter.
func (w *FileWriter) Write(ctx context.Context, report crawler.CombinedReport) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := local.WriteFileAtomic(w.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
