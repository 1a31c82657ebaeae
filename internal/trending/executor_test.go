package trending

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/trending-crawler/internal/fetcher/colly"
)

func fastConfig() Config {
	return Config{
		UserAgent:      "trend-test",
		AcceptLanguage: "en-US",
		Referer:        "https://github.com/",
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}
}

func TestExecuteAgainstServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trend-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://github.com/", r.Header.Get("Referer"))
		switch r.URL.Path {
		case "/trending/go":
			_, _ = w.Write([]byte(trendingHTML))
		case "/acme/rocket", "/beta/tool":
			_, _ = w.Write([]byte(repoHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.FetchDetails = true
	exec := New(collyfetcher.New(collyfetcher.Config{Timeout: time.Second}), nil, cfg, nil)

	job := crawler.JobID(srv.URL + "/trending/go?since=daily")
	out := exec.Execute(context.Background(), job, 3)
	require.NoError(t, out.Err)
	assert.Zero(t, out.Retries)
	assert.Equal(t, 1, out.ParseErrors)
	require.Len(t, out.Records, 2)

	rec := out.Records[0]
	assert.Equal(t, string(job), rec["source_url"])
	assert.Equal(t, "acme/rocket", rec["slug"])
	assert.Equal(t, 12345, rec["stars"])
	assert.Equal(t, "eng", rec["description_lang"])
	assert.Equal(t, "MIT license", rec["license"])
	assert.Equal(t, 1024, rec["open_issues"])
	assert.Equal(t, []string{"alice", "bob"}, rec["top_contributors"])
	assert.NotContains(t, rec, "repo_url")
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{
		failures: map[string]int{"https://github.com/trending": 2},
		pages:    map[string]string{"https://github.com/trending": trendingHTML},
	}
	out := New(f, nil, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 3)
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Retries)
	assert.Len(t, out.Records, 2)
	assert.Nil(t, out.Records[0]["license"], "details disabled")
}

func TestExecuteGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{failures: map[string]int{"https://github.com/trending": 10}}
	out := New(f, nil, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 3)
	require.Error(t, out.Err)
	assert.Equal(t, 3, out.Retries, "every failed attempt counts")
	assert.Empty(t, out.Records)
	assert.Equal(t, 3, f.calls("https://github.com/trending"))
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{permanent: true, failures: map[string]int{"https://github.com/trending": 10}}
	out := New(f, nil, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 5)
	require.Error(t, out.Err)
	assert.Equal(t, 1, out.Retries)
	assert.Equal(t, 1, f.calls("https://github.com/trending"))
}

func TestExecuteFailsJobOnDetailFailure(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{
		pages:    map[string]string{"https://github.com/trending": trendingHTML, "https://github.com/acme/rocket": repoHTML},
		failures: map[string]int{"https://github.com/beta/tool": 10},
	}
	cfg := fastConfig()
	cfg.FetchDetails = true
	out := New(f, nil, cfg, nil).Execute(context.Background(), "https://github.com/trending", 2)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "beta/tool")
	assert.Empty(t, out.Records)
	assert.Equal(t, 2, out.Retries)
}

func TestExecuteUsesLimiter(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{pages: map[string]string{"https://github.com/trending": trendingHTML}}
	limiter := &countingLimiter{}
	out := New(f, limiter, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 1)
	require.NoError(t, out.Err)
	assert.Equal(t, 1, limiter.waits)

	limiter.err = errors.New("limiter closed")
	out = New(f, limiter, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 1)
	require.ErrorContains(t, out.Err, "limiter closed")
}

func TestPolitenessStaysInRange(t *testing.T) {
	t.Parallel()

	exec := New(&scriptedFetcher{}, nil, Config{SleepMin: 10 * time.Millisecond, SleepMax: 20 * time.Millisecond}, nil)
	for range 50 {
		d := exec.politeness()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
	fixed := New(&scriptedFetcher{}, nil, Config{SleepMin: 5 * time.Millisecond}, nil)
	assert.Equal(t, 5*time.Millisecond, fixed.politeness())
}

type scriptedFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]int
	permanent bool
	seen      map[string]int
}

func (f *scriptedFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[req.URL]++
	if f.failures[req.URL] > 0 {
		f.failures[req.URL]--
		err := errors.New("upstream 502 for " + strings.TrimPrefix(req.URL, "https://github.com/"))
		if f.permanent {
			return crawler.FetchResponse{}, &crawler.PermanentError{Err: err}
		}
		return crawler.FetchResponse{}, err
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(f.pages[req.URL])}, nil
}

func (f *scriptedFetcher) calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[url]
}

type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	if l.err != nil {
		return l.err
	}
	l.waits++
	return nil
}
