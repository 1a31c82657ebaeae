// Package jobsource enumerates the GitHub trending pages a run will crawl.
package jobsource

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// DefaultBaseURL is the trending root.
const DefaultBaseURL = "https://github.com/trending"

// Config selects the trending filters.
type Config struct {
	BaseURL         string
	Languages       []string
	Periods         []string
	SpokenLanguages []string
}

// Trending generates one URL per period, spoken language and language.
type Trending struct {
	cfg Config
}

// New returns a Trending source with defaults applied.
func New(cfg Config) *Trending {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Periods) == 0 {
		cfg.Periods = []string{"daily"}
	}
	return &Trending{cfg: cfg}
}

// Generate implements crawler.JobSource. The order is period, then spoken
// language, then language; duplicates keep their first position. Without
// languages the global trending page is used.
func (t *Trending) Generate() []crawler.JobID {
	languages := t.cfg.Languages
	if len(languages) == 0 {
		languages = []string{""}
	}
	spoken := t.cfg.SpokenLanguages
	if len(spoken) == 0 {
		spoken = []string{""}
	}

	seen := make(map[crawler.JobID]struct{})
	var out []crawler.JobID
	for _, period := range t.cfg.Periods {
		for _, code := range spoken {
			for _, lang := range languages {
				id := crawler.JobID(t.buildURL(lang, period, code))
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// buildURL always carries both query parameters, even when empty, so the
// job IDs stay stable across filter changes. The language segment is
// form-encoded: "c++" becomes "c%2B%2B".
func (t *Trending) buildURL(lang, period, spokenCode string) string {
	base := t.cfg.BaseURL
	if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
		base += "/" + url.QueryEscape(lang)
	}
	q := url.Values{}
	q.Set("since", strings.TrimSpace(period))
	q.Set("spoken_language_code", strings.TrimSpace(spokenCode))
	return base + "?" + q.Encode()
}

// Static is a fixed job list, used by the standalone commands and tests.
type Static []crawler.JobID

// Generate implements crawler.JobSource.
func (s Static) Generate() []crawler.JobID {
	return append([]crawler.JobID(nil), s...)
}
