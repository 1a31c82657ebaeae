package trending

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Card is one repository row on a trending page.
type Card struct {
	Position    int
	Slug        string
	Owner       string
	Repo        string
	RepoURL     string
	Description string
	Language    string
	Stars       int
	StarsToday  string
	Forks       int
}

// Detail holds the fields scraped from a repository page.
type Detail struct {
	License           string
	OpenIssues        int
	ContributorsCount int
	TopContributors   []string
}

// ParseCards extracts every article.Box-row card. Relative repository links
// resolve against sourceURL. The int result counts counters that were present
// but unparsable.
func ParseCards(body []byte, sourceURL string) ([]Card, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse trending html: %w", err)
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse source url %q: %w", sourceURL, err)
	}

	var (
		cards       []Card
		parseErrors int
	)
	doc.Find("article.Box-row").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("h2 a").First().Attr("href")
		if !ok {
			parseErrors++
			return
		}
		slug := strings.Trim(strings.TrimSpace(href), "/")
		owner, repo, found := strings.Cut(slug, "/")
		if !found {
			parseErrors++
			return
		}
		c := Card{
			Position:    len(cards) + 1,
			Slug:        slug,
			Owner:       owner,
			Repo:        repo,
			RepoURL:     base.ResolveReference(&url.URL{Path: "/" + slug}).String(),
			Description: strings.TrimSpace(card.Find("p.col-9").First().Text()),
			Language:    strings.TrimSpace(card.Find("[itemprop=programmingLanguage]").First().Text()),
			StarsToday:  strings.TrimSpace(card.Find(".float-sm-right").First().Text()),
		}
		var bad bool
		if c.Stars, bad = countIn(card, fmt.Sprintf(`a[href="/%s/stargazers"]`, slug)); bad {
			parseErrors++
		}
		if c.Forks, bad = countIn(card, fmt.Sprintf(`a[href="/%s/forks"]`, slug)); bad {
			parseErrors++
		}
		cards = append(cards, c)
	})
	return cards, parseErrors, nil
}

// ParseRepoDetail reads license, open issue count and contributors from a
// repository page. The int result counts unparsable counters.
func ParseRepoDetail(body []byte) (Detail, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, 0, fmt.Errorf("parse repo html: %w", err)
	}
	var (
		detail      Detail
		parseErrors int
	)

	detail.License = strings.TrimSpace(doc.Find(
		`a[title*="License"], a[href$="/LICENSE"], a[href*="/blob/master/LICENSE"]`,
	).First().Text())

	if counter := doc.Find(`a[href$="/issues"] .Counter`).First(); counter.Length() > 0 {
		n, err := parseCount(counterText(counter))
		if err != nil {
			parseErrors++
		}
		detail.OpenIssues = n
	}

	contribSel := `a[href$="/graphs/contributors"].Link--primary`
	if counter := doc.Find(contribSel).First().Find(".Counter").First(); counter.Length() > 0 {
		n, err := parseCount(strings.TrimPrefix(counterText(counter), "+"))
		if err != nil {
			parseErrors++
		}
		detail.ContributorsCount = n
	}

	if detail.ContributorsCount > 0 {
		cell := doc.Find("div.BorderGrid-cell").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find(contribSel).Length() > 0
		}).First()
		cell.Find("ul.list-style-none.d-flex.flex-wrap.mb-n2 li a").Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimRight(a.AttrOr("href", ""), "/")
			if href == "" {
				return
			}
			detail.TopContributors = append(detail.TopContributors, href[strings.LastIndex(href, "/")+1:])
		})
	}
	return detail, parseErrors, nil
}

// countIn returns the number inside the first match of selector. A missing or
// empty element is zero; bad is set only when text was present but unparsable.
func countIn(s *goquery.Selection, selector string) (n int, bad bool) {
	text := strings.TrimSpace(s.Find(selector).First().Text())
	if text == "" {
		return 0, false
	}
	n, err := parseCount(text)
	return n, err != nil
}

func counterText(s *goquery.Selection) string {
	if title, ok := s.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(s.Text())
}

func parseCount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", raw, err)
	}
	return n, nil
}
