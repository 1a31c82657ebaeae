// Package reconcile deduplicates and sorts the accumulated CSV output once a
// run has drained.
package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/storage/local"
)

// ErrMissingColumn is returned when the dedupe or sort key is not in the header.
var ErrMissingColumn = errors.New("column not found in output header")

// CSVReconciler rewrites a CSV file in place, keeping the first row per key.
type CSVReconciler struct {
	logger *zap.Logger
}

// New returns a reconciler.
func New(logger *zap.Logger) *CSVReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVReconciler{logger: logger}
}

// Reconcile keeps the first-seen row per dedupeKey in on-disk order, sorts the
// survivors ascending by sortKeys (string tuple comparison, stable) and
// atomically replaces the file. It returns the number of rows dropped. A
// missing or empty file reconciles to zero duplicates.
func (r *CSVReconciler) Reconcile(ctx context.Context, path, dedupeKey string, sortKeys []string) (int, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	keyIdx, err := columnIndex(header, dedupeKey)
	if err != nil {
		return 0, err
	}
	sortIdx := make([]int, 0, len(sortKeys))
	for _, key := range sortKeys {
		idx, err := columnIndex(header, key)
		if err != nil {
			return 0, err
		}
		sortIdx = append(sortIdx, idx)
	}

	seen := make(map[string]struct{}, len(rows))
	kept := rows[:0]
	duplicates := 0
	for _, row := range rows {
		key := field(row, keyIdx)
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		for _, idx := range sortIdx {
			a, b := field(kept[i], idx), field(kept[j], idx)
			if a != b {
				return a < b
			}
		}
		return false
	})

	err = local.ReplaceFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := w.WriteAll(kept); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rewrite output: %w", err)
	}

	r.logger.Info("output reconciled",
		zap.String("path", path),
		zap.Int("rows", len(kept)),
		zap.Int("duplicates_removed", duplicates),
	)
	return duplicates, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	return header, rows, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, col := range header {
		if col == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
}

func field(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
