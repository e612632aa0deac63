package training

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// entry is one pair in an import document. JSON documents decode too since
// YAML is a superset.
type entry struct {
	Model    string `yaml:"model"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Priority int    `yaml:"priority"`
}

// ReadRecords decodes a list of question → answer pairs. persona fills in
// entries without a model; a zero priority becomes MinPriority.
func ReadRecords(r io.Reader, persona string) ([]Record, error) {
	var entries []entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidRecord, err)
	}

	recs := make([]Record, 0, len(entries))
	for i, e := range entries {
		rec := Record{
			Persona:  e.Model,
			Question: e.Question,
			Answer:   e.Answer,
			Priority: e.Priority,
		}
		if rec.Persona == "" {
			rec.Persona = persona
		}
		if rec.Priority == 0 {
			rec.Priority = MinPriority
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Import upserts recs in order and returns how many were written. It stops
// at the first failure.
func Import(ctx context.Context, s Store, recs []Record) (int, error) {
	for i, rec := range recs {
		if err := s.Upsert(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
