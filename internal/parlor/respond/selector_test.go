package respond_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/bdobrica/parlor/internal/parlor/conversation"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/respond"
	"github.com/bdobrica/parlor/internal/parlor/training"
	"github.com/bdobrica/parlor/internal/parlor/store/storetest"
)

// fakeStore records the keyword tokens it was asked about and answers from
// fixed maps.
type fakeStore struct {
	training.Store

	exact    map[string]*training.Record
	keywords map[string][]training.Record
	partial  map[string][]training.Record
	err      error

	keywordCalls []string
}

func (f *fakeStore) FindExact(_ context.Context, q, _ string) (*training.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exact[q], nil
}

func (f *fakeStore) FindByKeyword(_ context.Context, token, _ string, _ int) ([]training.Record, error) {
	f.keywordCalls = append(f.keywordCalls, token)
	return f.keywords[token], nil
}

func (f *fakeStore) FindPartial(_ context.Context, s, _ string, _ int) ([]training.Record, error) {
	return f.partial[s], nil
}

func newSelector(store training.Store) *respond.Selector {
	return respond.NewSelector(store, nil, rand.New(rand.NewPCG(1, 2)))
}

func enPersona(useEmoji bool) *persona.Config {
	return &persona.Config{
		Name:         "Emma",
		Language:     "en",
		MessageCount: 5,
		SemiMessage:  "Want to see more of me? 💕",
		FinalMessage: "Check out my telegram",
		UseEmoji:     useEmoji,
	}
}

var midTurn = conversation.TurnFor(1, 5)

func TestSelect_SemiAndFinal(t *testing.T) {
	store := &fakeStore{exact: map[string]*training.Record{"hello": {Answer: "trained"}}}
	s := newSelector(store)
	p := enPersona(true)

	sel, err := s.Select(context.Background(), "hello", p, "eng_girl_1", conversation.TurnFor(4, 5))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Text != p.SemiMessage || sel.Source != respond.SourceSemi {
		t.Errorf("expected semi message verbatim, got %+v", sel)
	}

	for _, turns := range []int{5, 9} {
		sel, err = s.Select(context.Background(), "hello", p, "eng_girl_1", conversation.TurnFor(turns, 5))
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if sel.Text != p.FinalMessage || sel.Source != respond.SourceFinal {
			t.Errorf("turn %d: expected final message verbatim, got %+v", turns, sel)
		}
	}
}

func TestSelect_ExactMatchNormalizes(t *testing.T) {
	store := &fakeStore{exact: map[string]*training.Record{"hello": {Answer: "Hi from training"}}}
	s := newSelector(store)

	for _, msg := range []string{"Hello", " hello ", "HELLO"} {
		got, err := s.Respond(context.Background(), msg, enPersona(true), "eng_girl_1", midTurn)
		if err != nil {
			t.Fatalf("Respond(%q): %v", msg, err)
		}
		if got != "Hi from training" {
			t.Errorf("Respond(%q) = %q, want trained answer without emoji", msg, got)
		}
	}
}

func TestSelect_KeywordFirstTokenWins(t *testing.T) {
	store := &fakeStore{keywords: map[string][]training.Record{
		"music":  {{Answer: "music answer", Priority: 2}},
		"travel": {{Answer: "travel answer", Priority: 10}},
	}}
	s := newSelector(store)

	sel, err := s.Select(context.Background(), "do you like music and travel", enPersona(false), "p", midTurn)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Text != "music answer" || sel.Source != respond.SourceKeyword {
		t.Errorf("expected first token's hit, got %+v", sel)
	}
	// "do", "you" are too short; "like" is queried, then "music" hits.
	if want := []string{"like", "music"}; !slices.Equal(store.keywordCalls, want) {
		t.Errorf("keyword queries = %v, want %v", store.keywordCalls, want)
	}
}

func TestSelect_KeywordTokenLengthCountsRunes(t *testing.T) {
	store := &fakeStore{keywords: map[string][]training.Record{
		"дела": {{Answer: "нормально"}},
	}}
	s := newSelector(store)

	got, err := s.Respond(context.Background(), "как дела", enPersona(false), "p", midTurn)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "нормально" {
		t.Errorf("expected 4-rune token to be queried, got %q", got)
	}
	if slices.Contains(store.keywordCalls, "как") {
		t.Errorf("3-rune token must be skipped, calls=%v", store.keywordCalls)
	}
}

func TestSelect_PartialMatch(t *testing.T) {
	store := &fakeStore{partial: map[string][]training.Record{
		"so so": {{Answer: "partial answer"}},
	}}
	s := newSelector(store)

	sel, err := s.Select(context.Background(), "So so", enPersona(true), "p", midTurn)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Text != "partial answer" || sel.Source != respond.SourcePartial {
		t.Errorf("unexpected selection: %+v", sel)
	}
}

func TestSelect_TemplateBuckets(t *testing.T) {
	tpl := respond.DefaultTemplates()
	s := newSelector(&fakeStore{})

	tests := []struct {
		message string
		lang    string
		bucket  string
	}{
		{"hello", "en", "greetings"},
		{"you are beautiful", "en", "compliments"},
		{"I want you", "en", "flirty"},
		{"ok sure", "en", "default"},
		{"Привет!", "ru", "greetings"},
		{"ты красивая", "ru", "compliments"},
		{"hello", "fr", "greetings"},
	}
	for _, tt := range tests {
		t.Run(tt.message+"/"+tt.lang, func(t *testing.T) {
			p := enPersona(false)
			p.Language = tt.lang
			sel, err := s.Select(context.Background(), tt.message, p, "p", midTurn)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if sel.Source != respond.SourceTemplate || sel.Bucket != tt.bucket {
				t.Errorf("expected bucket %q, got %+v", tt.bucket, sel)
			}
			if allowed := tpl.Candidates(tt.lang, tt.bucket); !slices.Contains(allowed, sel.Text) {
				t.Errorf("%q not among %v", sel.Text, allowed)
			}
		})
	}
}

func TestSelect_EnglishGreetingOnlyFromEnglishSet(t *testing.T) {
	tpl := respond.DefaultTemplates()
	allowed := tpl.Candidates("en", "greetings")
	s := newSelector(&fakeStore{})

	for range 50 {
		got, err := s.Respond(context.Background(), "hello", enPersona(false), "p", midTurn)
		if err != nil {
			t.Fatalf("Respond: %v", err)
		}
		if !slices.Contains(allowed, got) {
			t.Fatalf("%q not an English greeting", got)
		}
	}
}

// decorated reports whether got is a candidate kept verbatim because it
// already has a marker, or an unmarked candidate plus one palette emoji.
func decorated(tpl *respond.Templates, candidates []string, got string) bool {
	for _, c := range candidates {
		if tpl.HasMarker(c) {
			if got == c {
				return true
			}
			continue
		}
		if emoji, ok := strings.CutPrefix(got, c+" "); ok && slices.Contains(tpl.Emoji.Palette, emoji) {
			return true
		}
	}
	return false
}

func TestSelect_EmojiPostProcessing(t *testing.T) {
	tpl := respond.DefaultTemplates()
	s := newSelector(&fakeStore{})

	for _, msg := range []string{"ok sure", "hey", "I want more"} {
		bucket := tpl.Classify(strings.ToLower(msg))
		for range 30 {
			got, err := s.Respond(context.Background(), msg, enPersona(true), "p", midTurn)
			if err != nil {
				t.Fatalf("Respond: %v", err)
			}
			if !decorated(tpl, tpl.Candidates("en", bucket), got) {
				t.Fatalf("%q: unexpected emoji handling in %q", msg, got)
			}
		}
	}
}

func TestSelect_NoEmojiWhenDisabled(t *testing.T) {
	tpl := respond.DefaultTemplates()
	s := newSelector(&fakeStore{})

	got, err := s.Respond(context.Background(), "ok sure", enPersona(false), "p", midTurn)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !slices.Contains(tpl.Candidates("en", "default"), got) {
		t.Errorf("expected bare template, got %q", got)
	}
}

func TestSelect_StoreErrorIsUnavailable(t *testing.T) {
	s := newSelector(&fakeStore{err: errors.Join(training.ErrUnavailable, errors.New("db down"))})

	_, err := s.Respond(context.Background(), "hello", enPersona(true), "p", midTurn)
	if !errors.Is(err, training.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSelect_PriorityWithSQLiteStore(t *testing.T) {
	store := training.New(storetest.New(t))
	ctx := context.Background()
	for _, rec := range []training.Record{
		{Persona: "p", Question: "hello", Answer: "five", Priority: 5},
		{Persona: "p", Question: "hello", Answer: "nine", Priority: 9, AutoTrained: true},
	} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	s := newSelector(store)
	for range 5 {
		got, err := s.Respond(ctx, "Hello", enPersona(true), "p", midTurn)
		if err != nil {
			t.Fatalf("Respond: %v", err)
		}
		if got != "nine" {
			t.Fatalf("expected priority-9 answer, got %q", got)
		}
	}
}

func TestSelect_SeededIsDeterministic(t *testing.T) {
	a := newSelector(&fakeStore{})
	b := newSelector(&fakeStore{})
	for range 10 {
		x, _ := a.Respond(context.Background(), "hello", enPersona(true), "p", midTurn)
		y, _ := b.Respond(context.Background(), "hello", enPersona(true), "p", midTurn)
		if x != y {
			t.Fatalf("same seed produced %q and %q", x, y)
		}
	}
}
