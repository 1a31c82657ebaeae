package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "trending.csv")
	fields := []string{"slug", "stars", "top_contributors"}

	sink, err := NewCSVSink(path, fields, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sink.AppendRecords([]crawler.Record{
		{"slug": "a/b", "stars": 10, "top_contributors": []string{"x", "y"}, "repo_url": "https://github.com/a/b"},
	}))
	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Close())
	assert.Equal(t, 1, sink.Rows())

	reopened, err := NewCSVSink(path, fields, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, reopened.AppendRecords([]crawler.Record{{"slug": "c/d", "stars": int64(3)}}))
	require.NoError(t, reopened.Close())

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, fields, rows[0])
	assert.Equal(t, []string{"a/b", "10", "x;y"}, rows[1])
	assert.Equal(t, []string{"c/d", "3", ""}, rows[2])
}

func TestCSVSinkHeaderForEmptyExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trending.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	sink, err := NewCSVSink(path, []string{"slug"}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, [][]string{{"slug"}}, readAll(t, path))
}

func TestCSVSinkDefaultsFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trending.csv")
	sink, err := NewCSVSink(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Equal(t, [][]string{DefaultFields}, readAll(t, path))
}

func TestNewCSVSinkRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSVSink(" ", nil, nil)
	require.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   any
		want string
	}{
		"nil":    {nil, ""},
		"string": {"go", "go"},
		"int":    {42, "42"},
		"int64":  {int64(7), "7"},
		"float":  {1.5, "1.5"},
		"bool":   {true, "true"},
		"list":   {[]string{"a", "b", "c"}, "a;b;c"},
		"empty":  {[]string{}, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FormatValue(tc.in))
		})
	}
}
