package report

import (
	"regexp"
	"sort"
	"strings"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// DefaultStopwords are dropped from the summary word cloud.
var DefaultStopwords = []string{
	"a", "an", "the", "is", "are", "was", "were", "to", "of", "in",
	"with", "and", "for", "on", "at", "by", "this", "that", "these",
	"those", "there", "it", "be", "has", "have", "had", "will", "can", "do",
	"does", "did", "character", "story", "plot", "film", "movie",
	"scene", "part", "role", "play", "actor", "actress", "series",
	"place", "time", "moment", "way", "world", "day", "night", "year", "hui", "ju",
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Count is a label with its number of occurrences.
type Count struct {
	Label string
	N     int
}

// GenreCounts returns the k most common genres, most frequent first. Ties keep
// first-seen order.
func GenreCounts(movies []ranking.CountryMovie, k int) []Count {
	var all []string
	for _, m := range movies {
		all = append(all, m.Genres...)
	}
	return mostCommon(all, k)
}

// WordFrequencies counts summary words case-insensitively after stripping
// punctuation, skipping stopwords and bare numbers, and keeps the maxWords most common.
func WordFrequencies(movies []ranking.CountryMovie, stopwords map[string]struct{}, maxWords int) []Count {
	var words []string
	for _, m := range movies {
		if m.Summary == nil {
			continue
		}
		for _, w := range strings.Fields(punctuation.ReplaceAllString(*m.Summary, "")) {
			w = strings.ToLower(w)
			if _, skip := stopwords[w]; skip || isNumber(w) {
				continue
			}
			words = append(words, w)
		}
	}
	return mostCommon(words, maxWords)
}

// AverageScore returns the mean score on the 0-10 scale, or 0 for no movies.
func AverageScore(movies []ranking.CountryMovie) float64 {
	if len(movies) == 0 {
		return 0
	}
	var total int64
	for _, m := range movies {
		total += int64(m.Score)
	}
	return float64(total) / float64(len(movies)) / 10
}

// StopwordSet lowercases words into a lookup set.
func StopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func mostCommon(items []string, k int) []Count {
	index := map[string]int{}
	var counts []Count
	for _, item := range items {
		if i, ok := index[item]; ok {
			counts[i].N++
			continue
		}
		index[item] = len(counts)
		counts = append(counts, Count{Label: item, N: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].N > counts[j].N })
	if k > 0 && len(counts) > k {
		counts = counts[:k]
	}
	return counts
}

func isNumber(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return w != ""
}
