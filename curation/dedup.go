package curation

import "strings"

// DuplicateThreshold is the similarity ratio at or above which the
// later-processed article is tagged duplicate. The boundary is inclusive:
// a ratio of exactly 0.75 is a duplicate.
const DuplicateThreshold = 0.75

// Window is the deduplication working set: the title+headline keys of every
// article accepted within the trailing window, plus the keys accepted so far
// in the current batch. It is rebuilt at batch start and discarded at batch
// end; no state survives across runs.
type Window struct {
	entries []string
}

// NewWindow builds a working set from the recent-headline keys loaded for
// this batch.
func NewWindow(entries []string) *Window {
	w := &Window{entries: make([]string, 0, len(entries))}
	for _, e := range entries {
		w.entries = append(w.entries, normalizeKey(e))
	}
	return w
}

// MaxSimilarity returns the highest similarity between key and any entry in
// the working set.
func (w *Window) MaxSimilarity(key string) float64 {
	key = normalizeKey(key)
	max := 0.0
	for _, entry := range w.entries {
		if s := Similarity(key, entry); s > max {
			max = s
		}
	}
	return max
}

// IsDuplicate reports whether key is a near-duplicate of any entry.
func (w *Window) IsDuplicate(key string) bool {
	return w.MaxSimilarity(key) >= DuplicateThreshold
}

// Add inserts a key so that later articles in the same batch are compared
// against it too.
func (w *Window) Add(key string) {
	w.entries = append(w.entries, normalizeKey(key))
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity computes a longest-common-subsequence ratio in [0, 1]:
// 2*LCS(a,b) / (len(a)+len(b)), over runes.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(len(ra)+len(rb))
}

// lcsLength is the classic DP with a rolling row; O(n*m) time, O(min) space.
func lcsLength(a, b []rune) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := 1; i <= len(b); i++ {
		for j := 1; j <= len(a); j++ {
			if b[i-1] == a[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}
