package interactions

import (
	"context"
	"fmt"
	"time"

	"github.com/bdobrica/parlor/internal/parlor/store"
)

// ProblemThreshold is the highest rating counted as a problem reply.
const ProblemThreshold = 3

// Log is the SQLite-backed interaction and rating log.
type Log struct {
	db *store.Store
}

var _ Sink = (*Log)(nil)

// NewLog creates a Log backed by the application SQLite database.
func NewLog(db *store.Store) *Log {
	return &Log{db: db}
}

// Record implements Sink.
func (l *Log) Record(ctx context.Context, in Interaction) error {
	in.Stamp(time.Now())
	_, err := l.db.DB().ExecContext(ctx, `
		INSERT INTO interactions
			(id, trace_id, user_id, persona, user_message, response, message_number, is_semi, is_last, emotion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.TraceID, in.UserID, in.Persona, in.UserMessage, in.Response,
		in.MessageNumber, in.IsSemi, in.IsLast, in.Emotion, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("interactions: record %s: %w", in.ID, err)
	}
	return nil
}

// RecordRating stores r and folds it into the per-persona aggregate in one
// transaction.
func (l *Log) RecordRating(ctx context.Context, r Rating) error {
	if r.Rating < 1 || r.Rating > 10 {
		return fmt.Errorf("interactions: rating %d out of range 1..10", r.Rating)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := l.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("interactions: begin rating: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ratings (user_id, persona, message, response, rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.UserID, r.Persona, r.Message, r.Response, r.Rating, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("interactions: insert rating: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rating_stats (persona, total_ratings, total_score, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(persona) DO UPDATE SET
			total_ratings = total_ratings + 1,
			total_score   = total_score + excluded.total_score,
			updated_at    = excluded.updated_at
	`, r.Persona, r.Rating, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("interactions: update rating stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("interactions: commit rating: %w", err)
	}
	return nil
}

// ResponseCount is how often a reply was sent.
type ResponseCount struct {
	Response string `json:"response"`
	Count    int    `json:"count"`
}

// PersonaRating is the rating aggregate for one persona.
type PersonaRating struct {
	Persona       string  `json:"model"`
	TotalRatings  int     `json:"total_ratings"`
	AverageRating float64 `json:"average_rating"`
}

// Statistics summarises the interaction, rating and training tables.
type Statistics struct {
	TotalInteractions int             `json:"total_interactions"`
	TotalRatings      int             `json:"total_ratings"`
	TrainedResponses  int             `json:"trained_responses"`
	ByPersona         map[string]int  `json:"interactions_by_model"`
	TopResponses      []ResponseCount `json:"top_responses"`
	RatingStats       []PersonaRating `json:"rating_stats"`
	ProblemQuestions  []Rating        `json:"problem_questions"`
}

// Statistics computes the dashboard aggregates. limit bounds the top
// responses and problem questions lists.
func (l *Log) Statistics(ctx context.Context, limit int) (*Statistics, error) {
	if limit <= 0 {
		limit = 10
	}
	db := l.db.DB()
	st := &Statistics{ByPersona: make(map[string]int)}

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.TotalInteractions, `SELECT COUNT(*) FROM interactions`},
		{&st.TotalRatings, `SELECT COUNT(*) FROM ratings`},
		{&st.TrainedResponses, `SELECT COUNT(*) FROM training_responses`},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("interactions: count: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT persona, COUNT(*) FROM interactions GROUP BY persona`)
	if err != nil {
		return nil, fmt.Errorf("interactions: by persona: %w", err)
	}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("interactions: by persona scan: %w", err)
		}
		st.ByPersona[p] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interactions: by persona rows: %w", err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT response, COUNT(*) AS n FROM interactions
		GROUP BY response ORDER BY n DESC, response ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("interactions: top responses: %w", err)
	}
	for rows.Next() {
		var rc ResponseCount
		if err := rows.Scan(&rc.Response, &rc.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("interactions: top responses scan: %w", err)
		}
		st.TopResponses = append(st.TopResponses, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interactions: top responses rows: %w", err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT persona, total_ratings, CAST(total_score AS REAL) / total_ratings
		FROM rating_stats WHERE total_ratings > 0 ORDER BY persona
	`)
	if err != nil {
		return nil, fmt.Errorf("interactions: rating stats: %w", err)
	}
	for rows.Next() {
		var pr PersonaRating
		if err := rows.Scan(&pr.Persona, &pr.TotalRatings, &pr.AverageRating); err != nil {
			rows.Close()
			return nil, fmt.Errorf("interactions: rating stats scan: %w", err)
		}
		st.RatingStats = append(st.RatingStats, pr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interactions: rating stats rows: %w", err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT user_id, persona, message, response, rating, created_at FROM ratings
		WHERE rating <= ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, ProblemThreshold, limit)
	if err != nil {
		return nil, fmt.Errorf("interactions: problem questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.UserID, &r.Persona, &r.Message, &r.Response, &r.Rating, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("interactions: problem questions scan: %w", err)
		}
		st.ProblemQuestions = append(st.ProblemQuestions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interactions: problem questions rows: %w", err)
	}

	return st, nil
}
