package training

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/bdobrica/parlor/internal/parlor/store"
)

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *store.Store
}

// New creates a Store backed by the application SQLite database.
func New(db *store.Store) Store {
	return &sqliteStore{db: db}
}

const selectColumns = `SELECT id, persona, question, answer, priority, auto_trained, updated_at FROM training_responses`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (s *sqliteStore) FindExact(ctx context.Context, question, persona string) (*Record, error) {
	row := s.db.DB().QueryRowContext(ctx,
		selectColumns+` WHERE persona = ? AND question = ? ORDER BY priority DESC, id ASC LIMIT 1`,
		persona, Normalize(question),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err, "find exact", persona)
	}
	return &rec, nil
}

func (s *sqliteStore) FindByKeyword(ctx context.Context, token, persona string, limit int) ([]Record, error) {
	return s.findContaining(ctx, "find by keyword", token, persona, limit)
}

func (s *sqliteStore) FindPartial(ctx context.Context, substring, persona string, limit int) ([]Record, error) {
	return s.findContaining(ctx, "find partial", substring, persona, limit)
}

func (s *sqliteStore) findContaining(ctx context.Context, op, needle, persona string, limit int) ([]Record, error) {
	needle = Normalize(needle)
	if needle == "" || limit <= 0 {
		return nil, nil
	}
	return s.query(ctx, op, persona,
		selectColumns+` WHERE persona = ? AND question LIKE ? ESCAPE '\' ORDER BY priority DESC, id ASC LIMIT ?`,
		persona, containsPattern(needle), limit,
	)
}

func (s *sqliteStore) Upsert(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return oops.In("training").With("persona", rec.Persona).Wrapf(err, "upsert")
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO training_responses (persona, question, answer, priority, auto_trained, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(persona, question, auto_trained) DO UPDATE SET
			answer     = excluded.answer,
			priority   = excluded.priority,
			updated_at = excluded.updated_at
	`, rec.Persona, Normalize(rec.Question), rec.Answer, rec.Priority, rec.AutoTrained, time.Now().UTC())
	if err != nil {
		return unavailable(err, "upsert", rec.Persona)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context, persona string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, "list", persona,
		selectColumns+` WHERE persona = ? ORDER BY priority DESC, id ASC LIMIT ?`,
		persona, limit,
	)
}

func (s *sqliteStore) Delete(ctx context.Context, persona, question string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`DELETE FROM training_responses WHERE persona = ? AND question = ?`,
		persona, Normalize(question),
	)
	if err != nil {
		return unavailable(err, "delete", persona)
	}
	return nil
}

func (s *sqliteStore) query(ctx context.Context, op, persona, q string, args ...any) ([]Record, error) {
	rows, err := s.db.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(err, op, persona)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable(err, op+" scan", persona)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, op+" rows", persona)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Persona, &rec.Question, &rec.Answer, &rec.Priority, &rec.AutoTrained, &rec.UpdatedAt)
	return rec, err
}

func unavailable(err error, op, persona string) error {
	return oops.In("training").With("persona", persona).Wrapf(errors.Join(ErrUnavailable, err), "%s", op)
}
