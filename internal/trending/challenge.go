package trending

import (
	"bytes"
	"errors"
	"strings"
)

// ErrChallengePage marks a 200 response that is an anti-bot interstitial or
// an empty shell instead of real content. It is retried like any transient
// fetch failure.
var ErrChallengePage = errors.New("challenge or empty page served")

// shortBodyThreshold is the size below which a script-heavy page is treated
// as an interstitial.
const shortBodyThreshold = 2048

var challengeMarkers = [][]byte{
	[]byte("cf-browser-verification"),
	[]byte("challenge-platform"),
	[]byte("cf_chl_opt"),
	[]byte("<title>Just a moment...</title>"),
	[]byte("Please enable cookies"),
}

// IsChallenge reports whether body looks like an interstitial rather than a
// GitHub page.
func IsChallenge(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return len(body) < shortBodyThreshold && scriptDensityHigh(body)
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the document.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		end := total
		if gt := strings.IndexByte(lower[start:], '>'); gt != -1 {
			contentStart := start + gt + 1
			if closeAt := strings.Index(lower[contentStart:], closeTag); closeAt != -1 {
				end = contentStart + closeAt + len(closeTag)
			}
		}
		covered += end - start
		pos = end
	}
	return covered > 0 && covered*100/total >= 25
}
