// Package trending implements the per-job fetch and parse step for GitHub
// trending pages.
package trending

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// Config controls request headers, pacing and detail enrichment.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Referer        string
	SleepMin       time.Duration
	SleepMax       time.Duration
	FetchDetails   bool
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Executor fetches one trending page per job and turns its cards into records.
type Executor struct {
	cfg     Config
	fetcher crawler.Fetcher
	limiter crawler.RateLimiter
	retry   *crawler.ExponentialRetryPolicy
	logger  *zap.Logger
}

// New builds an Executor. limiter may be nil.
func New(fetcher crawler.Fetcher, limiter crawler.RateLimiter, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SleepMax < cfg.SleepMin {
		cfg.SleepMax = cfg.SleepMin
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Executor{
		cfg:     cfg,
		fetcher: fetcher,
		limiter: limiter,
		retry:   crawler.NewExponentialRetryPolicy(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		logger:  logger.Named("trending"),
	}
}

// Execute fetches job, parses its cards and, when enabled, enriches each card
// from its repository page. Any failed detail page fails the whole job.
func (e *Executor) Execute(ctx context.Context, job crawler.JobID, maxRetries int) crawler.Outcome {
	var out crawler.Outcome
	source := string(job)

	body, failures, err := e.fetch(ctx, source, maxRetries)
	out.Retries += failures
	if err != nil {
		out.Err = fmt.Errorf("fetch trending page %s: %w", source, err)
		return out
	}

	cards, parseErrors, err := ParseCards(body, source)
	out.ParseErrors += parseErrors
	if err != nil {
		out.Err = err
		return out
	}

	records := make([]crawler.Record, 0, len(cards))
	for _, card := range cards {
		rec := cardRecord(source, card)
		if e.cfg.FetchDetails {
			page, failures, err := e.fetch(ctx, card.RepoURL, maxRetries)
			out.Retries += failures
			if err != nil {
				out.Err = fmt.Errorf("fetch repo page %s: %w", card.RepoURL, err)
				return out
			}
			detail, parseErrors, err := ParseRepoDetail(page)
			out.ParseErrors += parseErrors
			if err != nil {
				out.Err = err
				return out
			}
			if parseErrors > 0 {
				e.logger.Warn("unparsable counters on repo page",
					zap.String("repo", card.Slug),
					zap.Int("parse_errors", parseErrors),
				)
			}
			rec["license"] = detail.License
			rec["open_issues"] = detail.OpenIssues
			rec["contributors_count"] = detail.ContributorsCount
			rec["top_contributors"] = detail.TopContributors
		}
		records = append(records, rec)
	}
	out.Records = records
	e.logger.Debug("trending page parsed",
		zap.String("url", source),
		zap.Int("cards", len(cards)),
		zap.Int("retries", out.Retries),
	)
	return out
}

// fetch retries url until it succeeds or the policy gives up. It returns the
// number of failed attempts alongside the body.
func (e *Executor) fetch(ctx context.Context, url string, maxAttempts int) ([]byte, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	failures := 0
	for {
		if err := crawler.Sleep(ctx, e.politeness()); err != nil {
			return nil, failures, err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, url); err != nil {
				return nil, failures, err
			}
		}
		resp, err := e.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url, Headers: e.headers()})
		if err == nil && IsChallenge(resp.Body) {
			err = fmt.Errorf("%s: %w", url, ErrChallengePage)
		}
		if err == nil {
			return resp.Body, failures, nil
		}
		failures++
		if !e.retry.ShouldRetry(err, failures, maxAttempts) {
			return nil, failures, err
		}
		e.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", failures),
			zap.Error(err),
		)
		if err := crawler.Sleep(ctx, e.retry.Backoff(failures-1)); err != nil {
			return nil, failures, err
		}
	}
}

func (e *Executor) headers() http.Header {
	h := http.Header{}
	if e.cfg.UserAgent != "" {
		h.Set("User-Agent", e.cfg.UserAgent)
	}
	if e.cfg.AcceptLanguage != "" {
		h.Set("Accept-Language", e.cfg.AcceptLanguage)
	}
	if e.cfg.Referer != "" {
		h.Set("Referer", e.cfg.Referer)
	}
	return h
}

func (e *Executor) politeness() time.Duration {
	span := e.cfg.SleepMax - e.cfg.SleepMin
	if span <= 0 {
		return e.cfg.SleepMin
	}
	// #nosec G404 -- jitter only.
	return e.cfg.SleepMin + time.Duration(rand.Int64N(int64(span)+1))
}

func cardRecord(source string, c Card) crawler.Record {
	return crawler.Record{
		"source_url":       source,
		"position":         c.Position,
		"slug":             c.Slug,
		"owner":            c.Owner,
		"repo":             c.Repo,
		"description":      c.Description,
		"description_lang": DetectLanguage(c.Description),
		"language":         c.Language,
		"stars":            c.Stars,
		"stars_today":      c.StarsToday,
		"forks":            c.Forks,
	}
}

// DetectLanguage returns the ISO 639-3 code of text, or "" for blank input.
func DetectLanguage(text string) string {
	if len(text) == 0 {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6393()
}
