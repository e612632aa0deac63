// Package respond picks the reply for a user message: scripted end-of-
// conversation messages first, then learned training answers, then a
// templated fallback.
package respond

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/bdobrica/parlor/internal/parlor/conversation"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

const (
	keywordMinRunes = 4
	keywordLimit    = 5
	partialLimit    = 3
)

// Source names where a reply came from.
type Source string

const (
	SourceSemi     Source = "semi"
	SourceFinal    Source = "final"
	SourceExact    Source = "exact"
	SourceKeyword  Source = "keyword"
	SourcePartial  Source = "partial"
	SourceTemplate Source = "template"
)

// Selection is a chosen reply and its origin.
type Selection struct {
	Text   string
	Source Source
	Bucket string // template bucket, set only for SourceTemplate
}

// Selector chooses replies. It is safe for concurrent use.
type Selector struct {
	store     training.Store
	templates *Templates

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector. A nil rng is seeded from the runtime's
// random source; nil templates use the built-in catalogue.
func NewSelector(store training.Store, templates *Templates, rng *rand.Rand) *Selector {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{store: store, templates: templates, rng: rng}
}

// Respond returns the reply text for message.
func (s *Selector) Respond(ctx context.Context, message string, p *persona.Config, personaName string, turn conversation.TurnInfo) (string, error) {
	sel, err := s.Select(ctx, message, p, personaName, turn)
	if err != nil {
		return "", err
	}
	return sel.Text, nil
}

// Select is Respond with the origin of the reply attached.
func (s *Selector) Select(ctx context.Context, message string, p *persona.Config, personaName string, turn conversation.TurnInfo) (Selection, error) {
	if turn.IsSemi {
		return Selection{Text: p.SemiMessage, Source: SourceSemi}, nil
	}
	if turn.IsLast {
		return Selection{Text: p.FinalMessage, Source: SourceFinal}, nil
	}

	sel, ok, err := s.fromTraining(ctx, message, personaName)
	if err != nil {
		return Selection{}, oops.In("respond").With("persona", personaName).Wrapf(err, "training lookup")
	}
	if ok {
		slog.Debug("training match", "persona", personaName, "source", sel.Source)
		return sel, nil
	}

	lowered := strings.ToLower(message)
	bucket := s.templates.Classify(lowered)
	text := s.pick(s.templates.Candidates(p.Language, bucket))
	if p.UseEmoji && !s.templates.HasMarker(text) && len(s.templates.Emoji.Palette) > 0 {
		text += " " + s.pick(s.templates.Emoji.Palette)
	}
	return Selection{Text: text, Source: SourceTemplate, Bucket: bucket}, nil
}

// fromTraining runs the exact, keyword and partial passes in order.
func (s *Selector) fromTraining(ctx context.Context, message, personaName string) (Selection, bool, error) {
	q := training.Normalize(message)
	if q == "" {
		return Selection{}, false, nil
	}

	rec, err := s.store.FindExact(ctx, q, personaName)
	if err != nil {
		return Selection{}, false, err
	}
	if rec != nil {
		return Selection{Text: rec.Answer, Source: SourceExact}, true, nil
	}

	// Only the first token with any hit is considered.
	for _, token := range strings.Fields(q) {
		if utf8.RuneCountInString(token) < keywordMinRunes {
			continue
		}
		hits, err := s.store.FindByKeyword(ctx, token, personaName, keywordLimit)
		if err != nil {
			return Selection{}, false, err
		}
		if len(hits) > 0 {
			return Selection{Text: hits[0].Answer, Source: SourceKeyword}, true, nil
		}
	}

	hits, err := s.store.FindPartial(ctx, q, personaName, partialLimit)
	if err != nil {
		return Selection{}, false, err
	}
	if len(hits) > 0 {
		return Selection{Text: hits[0].Answer, Source: SourcePartial}, true, nil
	}
	return Selection{}, false, nil
}

func (s *Selector) pick(options []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return options[s.rng.IntN(len(options))]
}
