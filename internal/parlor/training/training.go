// Package training stores learned question → answer pairs per persona.
package training

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("training store unavailable")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid training record")
)

const (
	MinPriority = 1
	MaxPriority = 10
)

// Record is a learned question → answer pair.
type Record struct {
	ID          int64     `json:"id"`
	Persona     string    `json:"model"`
	Question    string    `json:"question"` // normalized, see Normalize
	Answer      string    `json:"answer"`
	Priority    int       `json:"priority"`
	AutoTrained bool      `json:"auto_trained"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the lookup and write interface for training records.
// Implementations must be safe for concurrent use. Lookups order results by
// priority descending, then insertion order.
type Store interface {
	// FindExact returns the highest-priority record whose question equals
	// question after normalization, or nil when there is none.
	FindExact(ctx context.Context, question, persona string) (*Record, error)

	// FindByKeyword returns up to limit records whose question contains token.
	FindByKeyword(ctx context.Context, token, persona string, limit int) ([]Record, error)

	// FindPartial returns up to limit records whose question contains substring.
	FindPartial(ctx context.Context, substring, persona string, limit int) ([]Record, error)

	// Upsert inserts rec or replaces the answer and priority of the existing
	// record with the same persona, question and AutoTrained flag.
	Upsert(ctx context.Context, rec Record) error

	// List returns up to limit records for persona.
	List(ctx context.Context, persona string, limit int) ([]Record, error)

	// Delete removes every record for the persona and question. It is a
	// no-op when none exist.
	Delete(ctx context.Context, persona, question string) error
}

// Normalize lower-cases and trims a question the way it is stored and
// looked up.
func Normalize(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// Validate checks rec before it is written.
func (r Record) Validate() error {
	switch {
	case r.Persona == "":
		return errors.Join(ErrInvalidRecord, errors.New("persona is required"))
	case Normalize(r.Question) == "":
		return errors.Join(ErrInvalidRecord, errors.New("question is required"))
	case strings.TrimSpace(r.Answer) == "":
		return errors.Join(ErrInvalidRecord, errors.New("answer is required"))
	case r.Priority < MinPriority || r.Priority > MaxPriority:
		return errors.Join(ErrInvalidRecord, errors.New("priority must be between 1 and 10"))
	}
	return nil
}
