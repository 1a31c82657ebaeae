package crawler

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Executor is the fetch-execute unit invoked once per job. Failures are
// reported through Outcome.Err after the executor's own retries are exhausted.
type Executor interface {
	Execute(ctx context.Context, job JobID, maxRetries int) Outcome
}

// JobSource produces the ordered, deduplicated job list for a run.
type JobSource interface {
	Generate() []JobID
}

// Queue is a point-to-point mailbox between the coordinator and workers.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	Dequeue(ctx context.Context) (T, error)
}

// OutputSink receives records from the coordinator. Rows are durable once
// Flush returns.
type OutputSink interface {
	AppendRecords(records []Record) error
	Flush() error
	Close() error
}

// CheckpointStore loads and persists completion state.
type CheckpointStore interface {
	Load(ctx context.Context, jobs []JobID) (CheckpointState, []JobID, error)
	Save(ctx context.Context, state CheckpointState) error
}

// Reconciler deduplicates and sorts the output once the run is drained.
type Reconciler interface {
	Reconcile(ctx context.Context, path string, dedupeKey string, sortKeys []string) (int, error)
}

// ReportWriter persists the combined report.
type ReportWriter interface {
	Write(ctx context.Context, report CombinedReport) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RateLimiter paces outbound requests.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for fingerprinting.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
