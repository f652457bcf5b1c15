package postgres

import (
	"context"
	"fmt"

	"trivia-client/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// History archives terminal session outcomes in Postgres so finished
// play-throughs survive restarts and can be inspected later.
type History struct {
	pool *pgxpool.Pool
}

func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

func (h *History) RecordOutcome(ctx context.Context, o domain.SessionOutcome) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO session_history (session_id, player_id, outcome, score, questions_answered, difficulty, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			score = EXCLUDED.score,
			questions_answered = EXCLUDED.questions_answered,
			difficulty = EXCLUDED.difficulty,
			finished_at = EXCLUDED.finished_at`,
		o.SessionID, o.PlayerID, string(o.Outcome), o.Score, o.QuestionsAnswered, o.Difficulty, o.StartedAt, o.FinishedAt)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns the latest finished sessions, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]domain.SessionOutcome, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT session_id, player_id, outcome, score, questions_answered, difficulty, started_at, finished_at
		FROM session_history ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.SessionOutcome
	for rows.Next() {
		var o domain.SessionOutcome
		var outcome string
		if err := rows.Scan(&o.SessionID, &o.PlayerID, &outcome, &o.Score, &o.QuestionsAnswered, &o.Difficulty, &o.StartedAt, &o.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Outcome = domain.State(outcome)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
