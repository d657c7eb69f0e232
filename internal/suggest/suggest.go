// Package suggest offers "did you mean" candidates for mistyped feature
// names and config keys, ranked by Levenshtein distance.
package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Closest returns up to three candidates near unknown, best first. Matching
// ignores case and a leading "--". A candidate that contains unknown as a
// substring always qualifies. When nothing is within edit distance, an
// abbreviation such as "dr" for "distance-rates" is matched fuzzily.
func Closest(unknown string, candidates []string) []string {
	needle := strings.ToLower(strings.TrimLeft(unknown, "-"))
	if needle == "" {
		return nil
	}

	type scored struct {
		value string
		dist  int
	}
	var hits []scored
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		norm := strings.ToLower(strings.TrimLeft(c, "-"))
		dist := levenshtein(needle, norm)
		if strings.Contains(norm, needle) {
			dist = min(dist, 1)
		}
		if dist <= max(2, len(needle)/3) {
			hits = append(hits, scored{c, dist})
		}
	}

	if len(hits) == 0 {
		return abbreviations(needle, candidates)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if len(hits) > 3 {
		hits = hits[:3]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.value
	}
	return out
}

func abbreviations(needle string, candidates []string) []string {
	matches := fuzzy.Find(needle, candidates)
	var out []string
	for _, m := range matches {
		if len(out) == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
