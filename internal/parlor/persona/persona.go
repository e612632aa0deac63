// Package persona defines persona configuration (the character a reply is
// written as) and the sources it is loaded from.
package persona

import (
	"errors"
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

var (
	// ErrNotFound is returned when a persona name does not resolve to a
	// stored configuration.
	ErrNotFound = errors.New("persona not found")

	// ErrInvalidConfig is returned when a configuration fails validation,
	// e.g. message_count < 1.
	ErrInvalidConfig = errors.New("invalid persona config")

	// ErrUnavailable is returned when the configuration source cannot be read.
	ErrUnavailable = errors.New("persona source unavailable")
)

var (
	nameRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Config is the per-persona configuration. It is treated as immutable once
// loaded; sources hand out copies.
type Config struct {
	Name              string   `json:"name" yaml:"name" validate:"required"`
	Age               int      `json:"age" yaml:"age" validate:"gte=0"`
	Country           string   `json:"country" yaml:"country"`
	City              string   `json:"city" yaml:"city"`
	Language          string   `json:"language" yaml:"language" validate:"required"`
	Interests         []string `json:"interests" yaml:"interests"`
	Mood              string   `json:"mood" yaml:"mood"`
	MessageCount      int      `json:"message_count" yaml:"message_count" validate:"gte=1"`
	SemiMessage       string   `json:"semi_message" yaml:"semi_message"`
	FinalMessage      string   `json:"final_message" yaml:"final_message"`
	LearningEnabled   bool     `json:"learning_enabled" yaml:"learning_enabled"`
	ResponseLength    int      `json:"response_length" yaml:"response_length" validate:"gte=0"`
	UseEmoji          bool     `json:"use_emoji" yaml:"use_emoji"`
	PersonalityTraits []string `json:"personality_traits" yaml:"personality_traits"`
}

// Summary is the listing view of a stored persona.
type Summary struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// Validate checks the struct tags and the message_count invariant.
func (c *Config) Validate() error {
	if c == nil {
		return oops.In("persona").Wrapf(ErrInvalidConfig, "config is nil")
	}
	if err := validate.Struct(c); err != nil {
		return oops.In("persona").With("name", c.Name).Wrapf(errors.Join(ErrInvalidConfig, err), "validate")
	}
	return nil
}

// Clone returns a deep copy so callers can adapt a config without touching
// the cached original.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Interests = slices.Clone(c.Interests)
	cp.PersonalityTraits = slices.Clone(c.PersonalityTraits)
	return &cp
}

// Summarize returns the listing view for the persona stored under name.
func (c *Config) Summarize(name string) Summary {
	return Summary{
		Name:        name,
		DisplayName: c.Name,
		Language:    c.Language,
		Country:     c.Country,
	}
}

// ValidName reports whether name is usable as a persona key. Names double as
// file names, so only letters, digits, '_' and '-' are accepted.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}
