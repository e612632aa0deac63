package chat_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/bdobrica/parlor/internal/parlor/chat"
	"github.com/bdobrica/parlor/internal/parlor/conversation"
	"github.com/bdobrica/parlor/internal/parlor/interactions"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/respond"
	"github.com/bdobrica/parlor/internal/parlor/settings"
	"github.com/bdobrica/parlor/internal/parlor/store/storetest"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

type fixture struct {
	svc      *chat.Service
	personas *persona.FileSource
	tracker  *conversation.Tracker
	training training.Store
	log      *interactions.Log
	settings *settings.Store
}

func newFixture(t *testing.T, sink interactions.Sink) *fixture {
	t.Helper()
	ctx := context.Background()

	db := storetest.New(t)
	src, err := persona.NewFileSource(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if _, err := persona.SeedDefaults(ctx, src); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	short := &persona.Config{
		Name:            "Short",
		Language:        "en",
		MessageCount:    3,
		SemiMessage:     "almost done",
		FinalMessage:    "goodbye",
		LearningEnabled: true,
	}
	if err := src.Save(ctx, "short", short); err != nil {
		t.Fatalf("Save: %v", err)
	}

	f := &fixture{
		personas: src,
		tracker:  conversation.NewTracker(conversation.DefaultTrackerConfig()),
		training: training.New(db),
		log:      interactions.NewLog(db),
		settings: settings.New(db),
	}
	if sink == nil {
		sink = f.log
	}
	f.svc = chat.NewService(chat.Deps{
		Personas: src,
		Platform: f.settings,
		Tracker:  f.tracker,
		Selector: respond.NewSelector(f.training, nil, rand.New(rand.NewPCG(3, 4))),
		Training: f.training,
		Sink:     sink,
		Ratings:  f.log,
	})
	return f
}

func TestRespond_ConversationScript(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	want := []struct {
		text string
		semi bool
		last bool
	}{
		{"", false, false},
		{"almost done", true, false},
		{"goodbye", false, true},
		{"goodbye", false, true},
	}
	for i, w := range want {
		r, err := f.svc.Respond(ctx, "u1", "short", "ok sure")
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		if r.TurnNumber != i+1 || r.IsSemi != w.semi || r.IsLast != w.last {
			t.Errorf("turn %d: unexpected flags %+v", i+1, r)
		}
		if w.text != "" && r.Text != w.text {
			t.Errorf("turn %d: got %q, want %q", i+1, r.Text, w.text)
		}
		if r.Persona != "short" {
			t.Errorf("turn %d: persona %q", i+1, r.Persona)
		}
	}

	st, err := f.log.Statistics(ctx, 10)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.ByPersona["short"] != 4 {
		t.Errorf("expected 4 recorded interactions, got %d", st.ByPersona["short"])
	}
}

func TestRespond_UnknownPersona(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Respond(context.Background(), "u1", "ghost", "hi")
	if !errors.Is(err, persona.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.tracker.Len() != 0 {
		t.Error("unknown persona must not create conversation state")
	}
}

func TestRespond_RequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Respond(context.Background(), "", "short", "hi")
	if !errors.Is(err, chat.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Record(context.Context, interactions.Interaction) error {
	f.calls++
	return errors.New("sink down")
}

func TestRespond_SinkFailureIsDropped(t *testing.T) {
	sink := &failingSink{}
	f := newFixture(t, sink)

	r, err := f.svc.Respond(context.Background(), "u1", "eng_girl_1", "hello")
	if err != nil {
		t.Fatalf("sink failure must not fail the response: %v", err)
	}
	if r.Text == "" || sink.calls != 1 {
		t.Errorf("unexpected result: reply=%+v calls=%d", r, sink.calls)
	}
}

func TestTest_DoesNotTouchState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for range 5 {
		r, err := f.svc.Test(ctx, "short", "ok sure")
		if err != nil {
			t.Fatalf("Test: %v", err)
		}
		if r.TurnNumber != 1 || r.IsSemi || r.IsLast {
			t.Errorf("expected first-turn reply, got %+v", r)
		}
	}
	if f.tracker.Len() != 0 {
		t.Errorf("Test created conversation state: %d", f.tracker.Len())
	}
	st, _ := f.log.Statistics(ctx, 10)
	if st.TotalInteractions != 0 {
		t.Errorf("Test recorded interactions: %d", st.TotalInteractions)
	}
}

func TestTrain_ThenRespond(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.svc.Train(ctx, "How old are you?", "Old enough 😉", "eng_girl_1", 0); err != nil {
		t.Fatalf("Train: %v", err)
	}
	list, _ := f.training.List(ctx, "eng_girl_1", 10)
	if len(list) != 1 || list[0].Priority != 1 {
		t.Fatalf("expected default priority 1, got %+v", list)
	}

	r, err := f.svc.Respond(ctx, "u1", "eng_girl_1", "  how old are you?  ")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if r.Text != "Old enough 😉" {
		t.Errorf("expected trained answer, got %q", r.Text)
	}

	if err := f.svc.Train(ctx, "q", "a", "eng_girl_1", 11); !errors.Is(err, training.ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for priority 11, got %v", err)
	}
}

func TestRate_AutoTrains(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	trained, err := f.svc.Rate(ctx, chat.Rating{UserID: "op", Persona: "eng_girl_1", Message: "Tell me a secret", Response: "Only if you ask nicely", Score: 9})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !trained {
		t.Fatal("expected auto-training for score 9")
	}
	rec, err := f.training.FindExact(ctx, "tell me a secret", "eng_girl_1")
	if err != nil || rec == nil {
		t.Fatalf("expected auto-trained record, got %+v, %v", rec, err)
	}
	if !rec.AutoTrained || rec.Priority != 9 {
		t.Errorf("unexpected record: %+v", rec)
	}

	trained, err = f.svc.Rate(ctx, chat.Rating{UserID: "op", Persona: "eng_girl_1", Message: "meh", Response: "meh", Score: 7})
	if err != nil || trained {
		t.Errorf("score 7 must not train: trained=%v err=%v", trained, err)
	}

	st, _ := f.log.Statistics(ctx, 10)
	if st.TotalRatings != 2 {
		t.Errorf("expected 2 ratings stored, got %d", st.TotalRatings)
	}
}

func TestRate_LearningDisabled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cfg, _ := f.personas.Load(ctx, "eng_girl_1")
	cfg.LearningEnabled = false
	if err := f.personas.Save(ctx, "eng_girl_1", cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	trained, err := f.svc.Rate(ctx, chat.Rating{Persona: "eng_girl_1", Message: "hi", Response: "yo", Score: 10})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if trained {
		t.Error("learning disabled persona must not auto-train")
	}
}

func TestRate_OutOfRange(t *testing.T) {
	f := newFixture(t, nil)
	for _, score := range []int{0, 11} {
		if _, err := f.svc.Rate(context.Background(), chat.Rating{Persona: "p", Score: score}); !errors.Is(err, chat.ErrInvalidRequest) {
			t.Errorf("score %d: expected ErrInvalidRequest, got %v", score, err)
		}
	}
}

func TestRespond_PlatformAdaptation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p := persona.DefaultPlatform()
	p.AutoAdapt = true
	p.MessageLimits = persona.Range{Min: 2, Max: 2}
	if err := f.settings.SavePlatform(ctx, p); err != nil {
		t.Fatalf("SavePlatform: %v", err)
	}

	// message_count 5 is clamped to 2, so the first turn is already semi.
	r, err := f.svc.Respond(ctx, "u1", "eng_girl_1", "hello")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !r.IsSemi {
		t.Errorf("expected adapted message_count to make turn 1 semi, got %+v", r)
	}

	stored, _ := f.svc.Persona(ctx, "eng_girl_1")
	if stored.MessageCount != 5 {
		t.Errorf("adaptation leaked into stored persona: %d", stored.MessageCount)
	}
}

func TestSavePersona(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc := []byte(`{"name":"Mia","language":"en","message_count":4,"semi_message":"s","final_message":"f"}`)
	if _, err := f.svc.SavePersona(ctx, "mia", doc); err != nil {
		t.Fatalf("SavePersona: %v", err)
	}
	cfg, err := f.svc.Persona(ctx, "mia")
	if err != nil || cfg.MessageCount != 4 {
		t.Fatalf("unexpected stored persona: %+v, %v", cfg, err)
	}

	bad := []byte(`{"name":"Mia","language":"en","message_count":0,"semi_message":"s","final_message":"f"}`)
	if _, err := f.svc.SavePersona(ctx, "mia", bad); !errors.Is(err, persona.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.Respond(ctx, "u1", "eng_girl_1", "hello")
	f.svc.Respond(ctx, "u2", "rus_girl_1", "привет")

	st, err := f.svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.TotalInteractions != 2 || st.System.ActiveConversations != 2 || st.System.ModelsAvailable != 3 {
		t.Errorf("unexpected statistics: %+v / %+v", st.Statistics, st.System)
	}

	list, err := f.svc.Personas(ctx)
	if err != nil || len(list) != 3 {
		t.Errorf("expected 3 personas, got %v, %v", list, err)
	}
}
