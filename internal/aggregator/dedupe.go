package aggregator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// normalize prepares content for duplicate comparison: lowercased,
// whitespace collapsed, leading/trailing punctuation stripped.
func normalize(content string) string {
	s := strings.ToLower(strings.TrimSpace(content))
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, ".,;:!? ")
}

// contentHash returns the exact-match dedup key for a piece of content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(normalize(content)))
	return hex.EncodeToString(sum[:])
}

// similarity returns a ratio in [0,1]: 1 means identical after
// normalization, 0 means nothing in common.
func similarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return 1.0
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(na, nb)
	return 1.0 - float64(dist)/float64(longest)
}

// deduplicate removes exact duplicates by content hash, then near-duplicates
// whose similarity to an already-kept item meets the threshold. The first
// occurrence always wins.
func deduplicate(results []models.SourceResult, threshold float64) []models.SourceResult {
	seen := make(map[string]bool, len(results))
	var kept []models.SourceResult

	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}

		hash := contentHash(r.Content)
		if seen[hash] {
			continue
		}

		nearDup := false
		for _, k := range kept {
			if similarity(r.Content, k.Content) >= threshold {
				nearDup = true
				break
			}
		}
		if nearDup {
			continue
		}

		seen[hash] = true
		kept = append(kept, r)
	}
	return kept
}
