package training_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/parlor/internal/parlor/store/storetest"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

func TestReadRecords(t *testing.T) {
	doc := `
- question: How old are you?
  answer: Old enough
  priority: 4
- model: rus_girl_1
  question: Как дела?
  answer: Хорошо!
`
	recs, err := training.ReadRecords(strings.NewReader(doc), "eng_girl_1")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Persona != "eng_girl_1" || recs[0].Priority != 4 {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Persona != "rus_girl_1" || recs[1].Priority != training.MinPriority {
		t.Errorf("second record = %+v", recs[1])
	}
}

func TestReadRecords_JSON(t *testing.T) {
	doc := `[{"model":"eng_girl_1","question":"hi","answer":"hello","priority":2}]`
	recs, err := training.ReadRecords(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].Answer != "hello" {
		t.Fatalf("got %+v", recs)
	}
}

func TestReadRecords_Empty(t *testing.T) {
	recs, err := training.ReadRecords(strings.NewReader(""), "eng_girl_1")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %d records, want 0", len(recs))
	}
}

func TestReadRecords_Invalid(t *testing.T) {
	tests := map[string]string{
		"no persona":   `[{"question":"q","answer":"a"}]`,
		"no answer":    `[{"model":"m","question":"q"}]`,
		"bad priority": `[{"model":"m","question":"q","answer":"a","priority":42}]`,
		"not a list":   `question: q`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := training.ReadRecords(strings.NewReader(doc), "")
			if !errors.Is(err, training.ErrInvalidRecord) {
				t.Fatalf("err = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := training.New(storetest.New(t))

	recs := []training.Record{
		{Persona: "eng_girl_1", Question: "hi", Answer: "hello", Priority: 1},
		{Persona: "eng_girl_1", Question: "bye", Answer: "see you", Priority: 3},
	}
	n, err := training.Import(ctx, s, recs)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}

	got, err := s.FindExact(ctx, "BYE", "eng_girl_1")
	if err != nil || got == nil {
		t.Fatalf("FindExact = %v, %v", got, err)
	}
	if got.Answer != "see you" {
		t.Errorf("answer = %q", got.Answer)
	}
}
