// Package output persists job records to an append-only CSV file.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// DefaultFields is the column layout of the trending CSV.
var DefaultFields = []string{
	"source_url", "position", "slug", "owner", "repo", "description", "description_lang",
	"language", "stars", "stars_today", "forks",
	"license", "open_issues", "contributors_count", "top_contributors",
}

// ListSeparator joins list values into a single CSV cell.
const ListSeparator = ";"

// CSVSink appends records to a CSV file. The header is written only when the
// file is new or empty, so a resumed run keeps appending to the same table.
type CSVSink struct {
	path   string
	fields []string
	file   *os.File
	writer *csv.Writer
	rows   int
	logger *zap.Logger
}

// NewCSVSink opens (or creates) the CSV at path.
func NewCSVSink(path string, fields []string, logger *zap.Logger) (*CSVSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("output csv path is required")
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create output dir for %s: %w", path, err)
	}

	isNew := true
	if info, err := os.Stat(path); err == nil {
		isNew = info.Size() == 0
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat output %s: %w", path, err)
	}

	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	sink := &CSVSink{
		path:   path,
		fields: append([]string(nil), fields...),
		file:   f,
		writer: csv.NewWriter(f),
		logger: logger,
	}
	if isNew {
		if err := sink.writer.Write(sink.fields); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		if err := sink.Flush(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	logger.Debug("output opened", zap.String("path", path), zap.Bool("new", isNew))
	return sink, nil
}

// Path returns the CSV location.
func (s *CSVSink) Path() string {
	return s.path
}

// Rows returns how many records this sink has appended.
func (s *CSVSink) Rows() int {
	return s.rows
}

// AppendRecords buffers one row per record. Fields outside the column set are
// dropped.
func (s *CSVSink) AppendRecords(records []crawler.Record) error {
	for _, rec := range records {
		row := make([]string, len(s.fields))
		for i, name := range s.fields {
			row[i] = FormatValue(rec[name])
		}
		if err := s.writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		s.rows++
	}
	return nil
}

// Flush makes buffered rows durable.
func (s *CSVSink) Flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	return nil
}

// FormatValue renders a record value as a CSV cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ListSeparator)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
