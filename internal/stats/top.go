package stats

import (
	"sort"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// SubjectCount is the number of cards labelled with one subject.
type SubjectCount struct {
	Subject string
	Cards   int
}

// CountSubjects counts cards per non-empty subject, largest first and then
// by name.
func CountSubjects(dataset model.Dataset) []SubjectCount {
	counts := map[string]int{}
	for _, card := range dataset {
		if card.Subject == "" {
			continue
		}
		counts[card.Subject]++
	}
	out := make([]SubjectCount, 0, len(counts))
	for subject, n := range counts {
		out = append(out, SubjectCount{Subject: subject, Cards: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cards == out[j].Cards {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Cards > out[j].Cards
	})
	return out
}

// TopSubjects returns the n subjects with the most cards.
func TopSubjects(counts []SubjectCount, n int) []string {
	if n <= 0 || len(counts) == 0 {
		return nil
	}
	n = min(n, len(counts))
	out := make([]string, 0, n)
	for _, c := range counts[:n] {
		out = append(out, c.Subject)
	}
	return out
}
