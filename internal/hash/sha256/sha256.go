// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint returns a stable digest over the job set. Order and duplicates
// in jobs do not affect the result.
func Fingerprint(h crawler.Hasher, jobs []crawler.JobID) (string, error) {
	seen := make(map[crawler.JobID]struct{}, len(jobs))
	keys := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := seen[job]; ok {
			continue
		}
		seen[job] = struct{}{}
		keys = append(keys, string(job))
	}
	sort.Strings(keys)
	return h.Hash([]byte(strings.Join(keys, "\n")))
}
