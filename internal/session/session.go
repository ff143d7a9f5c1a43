// Package session tracks progress through a deck in practice and game mode.
package session

import (
	"errors"

	"github.com/google/uuid"

	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
)

// NoOtherOptions is offered when the dataset holds no distractor meaning.
const NoOtherOptions = "(no other options)"

var (
	// ErrFinished is returned when answering after the last card.
	ErrFinished = errors.New("session finished")
	// ErrInvalidChoice is returned for an option index out of range.
	ErrInvalidChoice = errors.New("invalid choice")
)

// Summary is the result of a finished session.
type Summary struct {
	ID    string
	Mode  model.Mode
	Score int
	Total int
}

// Practice walks through a deck of flashcards.
type Practice struct {
	id      string
	deck    model.Dataset
	pos     int
	flipped bool
}

// NewPractice starts a practice session over d.
func NewPractice(d model.Dataset) *Practice {
	return &Practice{id: uuid.NewString(), deck: d}
}

// ID identifies the session in logs.
func (p *Practice) ID() string { return p.id }

// Len returns the deck length.
func (p *Practice) Len() int { return len(p.deck) }

// Position returns the zero-based index of the current card.
func (p *Practice) Position() int { return p.pos }

// Done reports whether every card was seen. An empty deck is done at once.
func (p *Practice) Done() bool { return p.pos >= len(p.deck) }

// Current returns the card on screen.
func (p *Practice) Current() (model.Card, bool) {
	if p.Done() {
		return model.Card{}, false
	}
	return p.deck[p.pos], true
}

// Flip toggles between the front and the back of the current card.
func (p *Practice) Flip() {
	if p.Done() {
		return
	}
	p.flipped = !p.flipped
}

// Flipped reports whether the back of the current card is shown.
func (p *Practice) Flipped() bool { return p.flipped }

// Advance moves to the next card.
func (p *Practice) Advance() {
	if p.Done() {
		return
	}
	p.pos++
	p.flipped = false
}

// Summary describes the session.
func (p *Practice) Summary() Summary {
	return Summary{ID: p.id, Mode: model.ModePractice, Total: len(p.deck)}
}

// Option is one answer of a quiz question.
type Option struct {
	Text        string
	Correct     bool
	Placeholder bool
}

// Question is the current quiz prompt.
type Question struct {
	Card    model.Card
	Options []Option
}

// Game asks one multiple choice question per card and counts correct
// answers.
type Game struct {
	id       string
	deck     model.Dataset
	pool     model.Dataset
	options  int
	gen      *deck.Generator
	pos      int
	score    int
	question Question
}

// NewGame starts a quiz over d. Distractors are drawn from pool and each
// question offers at most options answers.
func NewGame(d, pool model.Dataset, options int, gen *deck.Generator) *Game {
	if options < 2 {
		options = 2
	}
	if gen == nil {
		gen = deck.New()
	}
	g := &Game{
		id:      uuid.NewString(),
		deck:    d,
		pool:    pool,
		options: options,
		gen:     gen,
	}
	g.prepare()
	return g
}

// ID identifies the session in logs.
func (g *Game) ID() string { return g.id }

// Len returns the deck length.
func (g *Game) Len() int { return len(g.deck) }

// Position returns the zero-based index of the current question.
func (g *Game) Position() int { return g.pos }

// Score returns the number of correct answers so far.
func (g *Game) Score() int { return g.score }

// Done reports whether every question was answered.
func (g *Game) Done() bool { return g.pos >= len(g.deck) }

// Question returns the current question.
func (g *Game) Question() (Question, bool) {
	if g.Done() {
		return Question{}, false
	}
	return g.question, true
}

// Answer records the chosen option and moves to the next question.
func (g *Game) Answer(choice int) (bool, error) {
	if g.Done() {
		return false, ErrFinished
	}
	if choice < 0 || choice >= len(g.question.Options) {
		return false, ErrInvalidChoice
	}
	correct := g.question.Options[choice].Correct
	if correct {
		g.score++
	}
	g.pos++
	g.prepare()
	return correct, nil
}

// Summary describes the session.
func (g *Game) Summary() Summary {
	return Summary{ID: g.id, Mode: model.ModeGame, Score: g.score, Total: len(g.deck)}
}

func (g *Game) prepare() {
	if g.Done() {
		g.question = Question{}
		return
	}
	card := g.deck[g.pos]
	distractors := Distractors(g.pool, card.Meaning)
	distractors = g.gen.Shuffle(distractors)
	if len(distractors) > g.options-1 {
		distractors = distractors[:g.options-1]
	}

	texts := append([]string{card.Meaning}, distractors...)
	placeholder := len(distractors) == 0
	if placeholder {
		texts = append(texts, NoOtherOptions)
	}
	texts = g.gen.Shuffle(texts)

	opts := make([]Option, len(texts))
	for i, text := range texts {
		switch {
		case placeholder && text == NoOtherOptions:
			opts[i] = Option{Text: text, Placeholder: true}
		default:
			opts[i] = Option{Text: text, Correct: text == card.Meaning}
		}
	}
	g.question = Question{Card: card, Options: opts}
}

// Distractors returns the distinct non-empty meanings in pool that differ
// from correct, in dataset order.
func Distractors(pool model.Dataset, correct string) []string {
	seen := map[string]struct{}{correct: {}}
	var out []string
	for _, card := range pool {
		if card.Meaning == "" {
			continue
		}
		if _, ok := seen[card.Meaning]; ok {
			continue
		}
		seen[card.Meaning] = struct{}{}
		out = append(out, card.Meaning)
	}
	return out
}
