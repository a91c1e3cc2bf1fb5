package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"arith-live-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const insertResultSQL = `
INSERT INTO session_results
	(session_id, external_identity, name, score, total_time_ms, average_time_ms, data, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id, external_identity) DO UPDATE SET
	name = EXCLUDED.name,
	score = EXCLUDED.score,
	total_time_ms = EXCLUDED.total_time_ms,
	average_time_ms = EXCLUDED.average_time_ms,
	data = EXCLUDED.data,
	finished_at = EXCLUDED.finished_at`

// ResultSink writes finished-session results to Postgres; the answer log and
// problems are stored as JSONB.
type ResultSink struct {
	pool *pgxpool.Pool
}

func NewResultSink(pool *pgxpool.Pool) *ResultSink {
	return &ResultSink{pool: pool}
}

type resultData struct {
	Answers  []domain.Answer  `json:"answers"`
	Problems []domain.Problem `json:"problems"`
}

func (s *ResultSink) SaveResults(ctx context.Context, results []domain.SessionResult) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		data, err := json.Marshal(resultData{Answers: r.Answers, Problems: r.Problems})
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		batch.Queue(insertResultSQL,
			r.SessionID, r.ExternalIdentity, r.Name, r.Score,
			r.TotalTimeMs, r.AverageTimeMs, data, r.FinishedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert session result: %w", err)
		}
	}
	return nil
}

// ResultsFor returns the stored results of one external identity, newest first.
func (s *ResultSink) ResultsFor(ctx context.Context, externalIdentity string) ([]domain.SessionResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT session_id, external_identity, name, score, total_time_ms, average_time_ms, data, finished_at
FROM session_results WHERE external_identity = $1 ORDER BY finished_at DESC`, externalIdentity)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionResult
	for rows.Next() {
		var (
			r   domain.SessionResult
			raw []byte
		)
		if err := rows.Scan(&r.SessionID, &r.ExternalIdentity, &r.Name, &r.Score,
			&r.TotalTimeMs, &r.AverageTimeMs, &raw, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan session result: %w", err)
		}
		var data resultData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal session result: %w", err)
		}
		r.Answers, r.Problems = data.Answers, data.Problems
		out = append(out, r)
	}
	return out, rows.Err()
}
