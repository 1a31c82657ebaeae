package gcs

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(t *testing.T, status int, body string, seen *[]string) *storage.Client {
	t.Helper()
	var mu sync.Mutex
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				mu.Lock()
				*seen = append(*seen, r.URL.Path)
				mu.Unlock()
				if r.Body != nil {
					_, _ = io.Copy(io.Discard, r.Body)
				}
				return &http.Response{
					StatusCode: status,
					Body:       io.NopCloser(strings.NewReader(body)),
					Header:     http.Header{"Content-Type": []string{"application/json"}},
					Request:    r,
				}, nil
			}),
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestNewValidatesArguments(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	var seen []string
	_, err = New(newTestClient(t, http.StatusOK, `{}`, &seen), Config{})
	require.Error(t, err)
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	t.Parallel()

	var seen []string
	client := newTestClient(t, http.StatusOK, `{"bucket":"artifacts","name":"runs/r1/trending.csv"}`, &seen)
	store, err := New(client, Config{Bucket: "artifacts"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "runs/r1/trending.csv", "text/csv", strings.NewReader("slug\na/b\n"))
	require.NoError(t, err)
	assert.Equal(t, "gs://artifacts/runs/r1/trending.csv", uri)
	require.NotEmpty(t, seen)
	assert.Contains(t, seen[0], "/b/artifacts/o")
}

func TestPutObjectIsWriteOnce(t *testing.T) {
	t.Parallel()

	var seen []string
	client := newTestClient(t, http.StatusPreconditionFailed,
		`{"error":{"code":412,"message":"At least one of the pre-conditions you specified did not hold."}}`, &seen)
	store, err := New(client, Config{Bucket: "artifacts"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "runs/r1/metrics.json", "application/json", strings.NewReader("{}"))
	require.ErrorIs(t, err, ErrObjectExists)
	require.NotEmpty(t, seen)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	var seen []string
	store, err := New(newTestClient(t, http.StatusOK, `{}`, &seen), Config{Bucket: "artifacts"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	require.Error(t, err)
	assert.Empty(t, seen)
}

func TestCheckBucket(t *testing.T) {
	t.Parallel()

	var seen []string
	ok, err := New(newTestClient(t, http.StatusOK, `{"name":"artifacts"}`, &seen), Config{Bucket: "artifacts"})
	require.NoError(t, err)
	require.NoError(t, ok.CheckBucket(context.Background()))
	assert.Contains(t, seen[0], "/storage/v1/b/artifacts")

	var failed []string
	bad, err := New(newTestClient(t, http.StatusNotFound, `{"error":{"code":404}}`, &failed), Config{Bucket: "missing"})
	require.NoError(t, err)
	err = bad.CheckBucket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `get bucket "missing" attributes`)
}
