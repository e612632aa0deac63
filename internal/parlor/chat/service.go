// Package chat ties personas, conversation progress, reply selection and the
// interaction log together into the operations the API exposes.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/bdobrica/parlor/common/trace"
	"github.com/bdobrica/parlor/internal/parlor/conversation"
	"github.com/bdobrica/parlor/internal/parlor/interactions"
	"github.com/bdobrica/parlor/internal/parlor/logging"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/respond"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

// AutoTrainThreshold is the lowest rating that turns a reply into training.
const AutoTrainThreshold = 8

// ErrInvalidRequest is returned for malformed operation input.
var ErrInvalidRequest = errors.New("invalid request")

// PlatformSource supplies the current platform settings.
type PlatformSource interface {
	Platform(ctx context.Context) (persona.Platform, error)
}

// RatingLog stores ratings and serves the statistics view.
type RatingLog interface {
	RecordRating(ctx context.Context, r interactions.Rating) error
	Statistics(ctx context.Context, limit int) (*interactions.Statistics, error)
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text       string `json:"response"`
	TurnNumber int    `json:"message_number"`
	IsSemi     bool   `json:"is_semi"`
	IsLast     bool   `json:"is_last"`
	Emotion    string `json:"emotion"`
	Persona    string `json:"model_used"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Personas persona.Source
	Platform PlatformSource
	Tracker  *conversation.Tracker
	Selector *respond.Selector
	Training training.Store
	Sink     interactions.Sink
	Ratings  RatingLog
}

// Service implements the chat operations. It is safe for concurrent use.
type Service struct {
	personas persona.Source
	platform PlatformSource
	tracker  *conversation.Tracker
	selector *respond.Selector
	training training.Store
	sink     interactions.Sink
	ratings  RatingLog
}

// NewService creates a Service. Sink, Platform and Ratings may be nil.
func NewService(d Deps) *Service {
	return &Service{
		personas: d.Personas,
		platform: d.Platform,
		tracker:  d.Tracker,
		selector: d.Selector,
		training: d.Training,
		sink:     d.Sink,
		ratings:  d.Ratings,
	}
}

// Respond advances the user's conversation with the persona and returns the
// selected reply. Failure to record the interaction is logged, not returned.
func (s *Service) Respond(ctx context.Context, userID, personaName, message string) (*Reply, error) {
	if userID == "" {
		return nil, oops.In("chat").Wrapf(ErrInvalidRequest, "user_id is required")
	}

	cfg, err := s.persona(ctx, personaName)
	if err != nil {
		return nil, err
	}

	turn := s.tracker.Advance(userID, personaName, message, cfg.MessageCount)
	text, err := s.selector.Respond(ctx, message, cfg, personaName, turn)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		Text:       text,
		TurnNumber: turn.TurnsCompleted,
		IsSemi:     turn.IsSemi,
		IsLast:     turn.IsLast,
		Emotion:    respond.DetectEmotion(message),
		Persona:    personaName,
	}

	if s.sink != nil {
		in := interactions.Interaction{
			TraceID:       trace.FromContext(ctx),
			UserID:        userID,
			Persona:       personaName,
			UserMessage:   message,
			Response:      text,
			MessageNumber: turn.TurnsCompleted,
			IsSemi:        turn.IsSemi,
			IsLast:        turn.IsLast,
			Emotion:       reply.Emotion,
		}
		if err := s.sink.Record(ctx, in); err != nil {
			logging.WithTrace(ctx).Warn("failed to record interaction", "persona", personaName, "err", err)
		}
	}

	return reply, nil
}

// Test returns the reply the persona would give to message on its first
// turn. It never touches conversation state or the interaction log.
func (s *Service) Test(ctx context.Context, personaName, message string) (*Reply, error) {
	cfg, err := s.persona(ctx, personaName)
	if err != nil {
		return nil, err
	}

	turn := s.tracker.Fixed(cfg.MessageCount, 1)
	text, err := s.selector.Respond(ctx, message, cfg, personaName, turn)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Text:       text,
		TurnNumber: turn.TurnsCompleted,
		IsSemi:     turn.IsSemi,
		IsLast:     turn.IsLast,
		Emotion:    respond.DetectEmotion(message),
		Persona:    personaName,
	}, nil
}

// persona loads and adapts the named persona.
func (s *Service) persona(ctx context.Context, name string) (*persona.Config, error) {
	cfg, err := s.personas.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.platform == nil {
		return cfg, nil
	}
	p, err := s.platform.Platform(ctx)
	if err != nil {
		logging.WithTrace(ctx).Warn("platform settings unavailable, using defaults", "err", err)
		p = persona.DefaultPlatform()
	}
	return persona.Adapt(cfg, p), nil
}

// Rating is an operator's score for one reply.
type Rating struct {
	UserID   string
	Persona  string
	Message  string
	Response string
	Score    int
}

// Rate stores the rating. A score of AutoTrainThreshold or more for a
// persona with learning enabled also stores the reply as auto-trained
// training with priority equal to the score.
func (s *Service) Rate(ctx context.Context, r Rating) (autoTrained bool, err error) {
	if r.Score < training.MinPriority || r.Score > training.MaxPriority {
		return false, oops.In("chat").With("rating", r.Score).Wrapf(ErrInvalidRequest, "rating must be between 1 and 10")
	}

	if s.ratings != nil {
		err := s.ratings.RecordRating(ctx, interactions.Rating{
			UserID:   r.UserID,
			Persona:  r.Persona,
			Message:  r.Message,
			Response: r.Response,
			Rating:   r.Score,
		})
		if err != nil {
			return false, oops.In("chat").With("persona", r.Persona).Wrapf(err, "record rating")
		}
	}

	if r.Score < AutoTrainThreshold || !s.learningEnabled(ctx, r.Persona) {
		return false, nil
	}

	err = s.training.Upsert(ctx, training.Record{
		Persona:     r.Persona,
		Question:    r.Message,
		Answer:      r.Response,
		Priority:    r.Score,
		AutoTrained: true,
	})
	if err != nil {
		return false, err
	}
	logging.WithTrace(ctx).Info("auto-trained from rating", "persona", r.Persona, "priority", r.Score)
	return true, nil
}

// learningEnabled reports the persona's learning flag. Personas that cannot
// be loaded are treated as enabled so ratings for retired personas still
// train.
func (s *Service) learningEnabled(ctx context.Context, name string) bool {
	cfg, err := s.personas.Load(ctx, name)
	if err != nil {
		return true
	}
	return cfg.LearningEnabled
}

// Train stores a manual question → answer pair. Priority 0 means 1.
func (s *Service) Train(ctx context.Context, question, answer, personaName string, priority int) error {
	if priority == 0 {
		priority = training.MinPriority
	}
	err := s.training.Upsert(ctx, training.Record{
		Persona:  personaName,
		Question: question,
		Answer:   answer,
		Priority: priority,
	})
	if err != nil {
		return err
	}
	logging.WithTrace(ctx).Info("training stored", "persona", personaName, "priority", priority)
	return nil
}

// SystemStatus describes the running service.
type SystemStatus struct {
	ActiveConversations int       `json:"active_conversations"`
	ModelsAvailable     int       `json:"models_available"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Statistics is the dashboard view.
type Statistics struct {
	*interactions.Statistics
	System SystemStatus `json:"system_status"`
}

// Statistics returns aggregate counts and the system status.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	st := &interactions.Statistics{ByPersona: map[string]int{}}
	if s.ratings != nil {
		var err error
		st, err = s.ratings.Statistics(ctx, 10)
		if err != nil {
			return nil, oops.In("chat").Wrapf(errors.Join(training.ErrUnavailable, err), "statistics")
		}
	}

	list, err := s.personas.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Statistics{
		Statistics: st,
		System: SystemStatus{
			ActiveConversations: s.tracker.Len(),
			ModelsAvailable:     len(list),
			GeneratedAt:         time.Now().UTC(),
		},
	}, nil
}

// Personas lists the stored personas.
func (s *Service) Personas(ctx context.Context) ([]persona.Summary, error) {
	return s.personas.List(ctx)
}

// Persona returns the stored (unadapted) configuration.
func (s *Service) Persona(ctx context.Context, name string) (*persona.Config, error) {
	return s.personas.Load(ctx, name)
}

// SavePersona validates a raw JSON document against the persona schema and
// stores it.
func (s *Service) SavePersona(ctx context.Context, name string, raw []byte) (*persona.Config, error) {
	cfg, err := persona.DecodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := s.personas.Save(ctx, name, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ActiveConversations returns the number of tracked conversations.
func (s *Service) ActiveConversations() int {
	return s.tracker.Len()
}
