package trending

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

func TestIsChallenge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"empty", "  \n", true},
		{"cloudflare", `<html><head><title>Just a moment...</title></head></html>`, true},
		{"challenge script", `<div id="challenge-platform"></div>`, true},
		{"script shell", `<html><script>` + strings.Repeat("x", 400) + `</script><body></body></html>`, true},
		{"unclosed script", `<html><body>hi<script src="a.js">` + strings.Repeat("y", 100), true},
		{"trending page", trendingHTML, false},
		{"repo page", repoHTML, false},
		{"large script page", strings.Repeat("<p>content</p>", 300) + `<script>` + strings.Repeat("z", 3000) + `</script>`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsChallenge([]byte(tc.body)))
		})
	}
}

func TestExecuteRetriesChallengePages(t *testing.T) {
	t.Parallel()

	f := &challengeFetcher{scriptedFetcher: scriptedFetcher{
		pages: map[string]string{"https://github.com/trending": trendingHTML},
	}, challenges: 1}
	out := New(f, nil, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 3)
	require.NoError(t, out.Err)
	assert.Equal(t, 1, out.Retries)
	assert.Len(t, out.Records, 2)

	f = &challengeFetcher{challenges: 5}
	out = New(f, nil, fastConfig(), nil).Execute(context.Background(), "https://github.com/trending", 2)
	require.ErrorIs(t, out.Err, ErrChallengePage)
	assert.Equal(t, 2, out.Retries)
}

type challengeFetcher struct {
	scriptedFetcher
	challenges int
}

func (f *challengeFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	if f.challenges > 0 {
		f.challenges--
		f.mu.Unlock()
		return crawler.FetchResponse{
			URL:        req.URL,
			StatusCode: http.StatusOK,
			Body:       []byte(`<html><head><title>Just a moment...</title></head></html>`),
		}, nil
	}
	f.mu.Unlock()
	return f.scriptedFetcher.Fetch(ctx, req)
}
