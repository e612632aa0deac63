// Package interactions records what was said to whom, and how operators
// rated it.
package interactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Interaction is one user message and the reply it received.
type Interaction struct {
	ID            string    `json:"id"`
	TraceID       string    `json:"trace_id,omitempty"`
	UserID        string    `json:"user_id"`
	Persona       string    `json:"model"`
	UserMessage   string    `json:"user_message"`
	Response      string    `json:"response"`
	MessageNumber int       `json:"message_number"`
	IsSemi        bool      `json:"is_semi"`
	IsLast        bool      `json:"is_last"`
	Emotion       string    `json:"emotion"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Rating is an operator's 1..10 score for a reply.
type Rating struct {
	UserID    string    `json:"user_id"`
	Persona   string    `json:"model"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"timestamp"`
}

// Sink receives interactions.
type Sink interface {
	Record(ctx context.Context, in Interaction) error
}

// Stamp fills in the ID and timestamp when they are unset.
func (in *Interaction) Stamp(now time.Time) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now.UTC()
	}
}

// Fanout records into every sink and joins their errors.
type Fanout []Sink

// Record implements Sink. Every sink is attempted even if an earlier one
// fails.
func (f Fanout) Record(ctx context.Context, in Interaction) error {
	in.Stamp(time.Now())

	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
