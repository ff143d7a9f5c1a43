// Package deck builds session decks from a dataset.
package deck

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// Generator produces randomly ordered decks.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource returns a Generator drawing from src.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Generate filters the dataset by subject, shuffles it uniformly and
// truncates it to size. An empty or Mixed subject keeps every card; a size
// of 0 keeps the whole shuffled sequence. The dataset is never modified.
func (g *Generator) Generate(dataset model.Dataset, subject string, size int) model.Dataset {
	filtered := Filter(dataset, subject)
	g.rnd.Shuffle(len(filtered), func(i, j int) {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	})
	if size > 0 && size < len(filtered) {
		filtered = filtered[:size]
	}
	return filtered
}

// Shuffle returns a uniformly shuffled copy of values.
func (g *Generator) Shuffle(values []string) []string {
	out := append([]string(nil), values...)
	g.rnd.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Filter returns a copy holding the cards whose subject equals subject
// exactly. An empty or Mixed subject keeps every card.
func Filter(dataset model.Dataset, subject string) model.Dataset {
	out := make(model.Dataset, 0, len(dataset))
	for _, card := range dataset {
		if subject == "" || subject == model.SubjectMixed || card.Subject == subject {
			out = append(out, card)
		}
	}
	return out
}

// ParseSize converts a size selection into a card limit. Empty and All
// mean no limit and map to 0.
func ParseSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, model.SizeAll) {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid deck size %q: must be a number or %q", raw, model.SizeAll)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid deck size %q: must be greater than 0", raw)
	}
	return n, nil
}

// Subjects returns the distinct non-empty subjects of the dataset, sorted,
// followed by the Mixed sentinel.
func Subjects(dataset model.Dataset) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, card := range dataset {
		if card.Subject == "" || card.Subject == model.SubjectMixed {
			continue
		}
		if _, ok := seen[card.Subject]; ok {
			continue
		}
		seen[card.Subject] = struct{}{}
		out = append(out, card.Subject)
	}
	sort.Strings(out)
	return append(out, model.SubjectMixed)
}
