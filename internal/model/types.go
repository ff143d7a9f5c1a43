// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// Canonical field names used by the dataset source and the persisted cache.
const (
	FieldTerm          = "mandarin"
	FieldPronunciation = "pinyin"
	FieldMeaning       = "english"
	FieldSubject       = "subject"
)

// FieldAliases maps legacy column names onto their canonical names.
var FieldAliases = map[string]string{
	"meaning": FieldMeaning,
	"sources": FieldSubject,
}

// CanonicalField returns the canonical name for a header, resolving legacy
// aliases.
func CanonicalField(name string) string {
	if alias, ok := FieldAliases[name]; ok {
		return alias
	}
	return name
}

const (
	// SubjectMixed disables subject filtering.
	SubjectMixed = "Mixed"
	// SizeAll disables deck truncation.
	SizeAll = "All"
)

// Card is one vocabulary entry.
type Card struct {
	Term          string
	Pronunciation string
	Meaning       string
	Subject       string
	// Extra holds columns that have no dedicated field, keyed by header name.
	Extra map[string]string
}

// Dataset is the ordered result of one fetch.
type Dataset []Card

// Freshness holds the opaque tokens the dataset source returned.
type Freshness struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// IsZero reports whether no freshness token is known.
func (f Freshness) IsZero() bool {
	return f.ETag == "" && f.LastModified == ""
}

// CacheRecord is the persisted dataset plus its freshness metadata.
type CacheRecord struct {
	Dataset Dataset `json:"parsedData"`
	Freshness
	// UpdatePending is set when a newer dataset was stored in the background
	// and the user has not reloaded yet.
	UpdatePending bool `json:"updateAvailable,omitempty"`
}

// Mode selects the interaction mode of a session.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeGame     Mode = "game"
)

// Config defines runtime settings after file, env and flag layering.
type Config struct {
	SourceURL     string        `validate:"required,url"`
	SourceTimeout time.Duration `validate:"gt=0"`
	SourceRetries int           `validate:"gte=0,lte=10"`

	Subject string `validate:"required"`
	Size    string `validate:"required,decksize"`
	Options int    `validate:"gte=2,lte=6"`

	ShellOrigin    string   `validate:"omitempty,url"`
	ShellAssets    []string `validate:"dive,required"`
	ShellVersion   int      `validate:"gte=1"`
	DataVersion    int      `validate:"gte=1"`
	Listen         string   `validate:"required,hostname_port"`
	AllowedOrigins []string

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Fields returns the card as a header-keyed map.
func (c Card) Fields() map[string]string {
	out := make(map[string]string, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	out[FieldTerm] = c.Term
	out[FieldPronunciation] = c.Pronunciation
	out[FieldMeaning] = c.Meaning
	out[FieldSubject] = c.Subject
	return out
}

// CardFromFields builds a card from a header-keyed map.
func CardFromFields(fields map[string]string) Card {
	var c Card
	for k, v := range fields {
		switch k {
		case FieldTerm:
			c.Term = v
		case FieldPronunciation:
			c.Pronunciation = v
		case FieldMeaning:
			c.Meaning = v
		case FieldSubject:
			c.Subject = v
		default:
			if c.Extra == nil {
				c.Extra = map[string]string{}
			}
			c.Extra[k] = v
		}
	}
	return c
}

// Equal reports structural equality.
func (c Card) Equal(o Card) bool {
	if c.Term != o.Term || c.Pronunciation != o.Pronunciation || c.Meaning != o.Meaning || c.Subject != o.Subject {
		return false
	}
	if len(c.Extra) != len(o.Extra) {
		return false
	}
	for k, v := range c.Extra {
		if ov, ok := o.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON writes the card as a flat object keyed by header name.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Fields())
}

// UnmarshalJSON accepts a flat object keyed by header name. Legacy header
// names are mapped onto their canonical names; a canonical key wins over
// its alias. Non-string values are ignored.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		name := CanonicalField(k)
		if _, taken := fields[name]; taken && name != k {
			continue
		}
		fields[name] = s
	}
	*c = CardFromFields(fields)
	return nil
}

// Equal reports whether both datasets hold structurally equal cards in order.
func (d Dataset) Equal(o Dataset) bool {
	if len(d) != len(o) {
		return false
	}
	for i := range d {
		if !d[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// StoredResponse is an HTTP response persisted in a cache namespace.
type StoredResponse struct {
	URL      string
	Status   int
	Header   map[string][]string
	Body     []byte
	StoredAt time.Time
}
