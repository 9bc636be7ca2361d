package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/kepler/internal/agent"
	"github.com/MikeSquared-Agency/kepler/internal/insight"
)

// Run is one persisted analysis, successful or not.
type Run struct {
	ID           uuid.UUID                  `json:"id"`
	SourceID     string                     `json:"source_id,omitempty"`
	Success      bool                       `json:"success"`
	Title        string                     `json:"title,omitempty"`
	Insight      *insight.ActionableInsight `json:"insight,omitempty"`
	RawResponse  string                     `json:"raw_response,omitempty"`
	Metadata     *agent.Metadata            `json:"metadata,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Warnings     []string                   `json:"warnings,omitempty"`
	SourceCounts map[string]int             `json:"source_counts"`
	Verdict      string                     `json:"verdict,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// NewRun builds a Run from an agent output.
func NewRun(sourceID string, out agent.Output, counts map[string]int, now time.Time) *Run {
	r := &Run{
		ID:           uuid.New(),
		SourceID:     sourceID,
		Success:      out.Success,
		Insight:      out.Insight,
		RawResponse:  out.RawResponse,
		Metadata:     out.Metadata,
		Error:        out.Error,
		Warnings:     out.Warnings,
		SourceCounts: counts,
		CreatedAt:    now.UTC(),
	}
	if out.Insight != nil {
		r.Title = out.Insight.Title
	}
	return r
}

// SaveRun inserts a run.
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	insightJSON, err := nullableJSON(r.Insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	metadataJSON, err := nullableJSON(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	counts := r.SourceCounts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal source counts: %w", err)
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO kepler_runs (id, source_id, success, title, insight, raw_response, metadata, error, warnings, source_counts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.SourceID, r.Success, r.Title, insightJSON, r.RawResponse, metadataJSON, r.Error, warnings, countsJSON, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `id, source_id, success, title, insight, raw_response, metadata, error, warnings, source_counts, verdict, created_at`

// GetRun fetches a run by ID. It returns ErrNotFound when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM kepler_runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// SetVerdict records a reviewer's judgement of a run.
func (s *Store) SetVerdict(ctx context.Context, id uuid.UUID, verdict string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE kepler_runs SET verdict = $2 WHERE id = $1`, id, verdict)
	if err != nil {
		return fmt.Errorf("set verdict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListOpts struct {
	SourceID string
	Limit    int
	Offset   int
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOpts) ([]Run, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+` FROM kepler_runs
		WHERE ($1 = '' OR source_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		opts.SourceID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		r                         Run
		insightJSON, metadataJSON []byte
		countsJSON                []byte
	)
	err := row.Scan(&r.ID, &r.SourceID, &r.Success, &r.Title, &insightJSON, &r.RawResponse,
		&metadataJSON, &r.Error, &r.Warnings, &countsJSON, &r.Verdict, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(insightJSON) > 0 {
		var in insight.ActionableInsight
		if err := json.Unmarshal(insightJSON, &in); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		r.Insight = &in
	}
	if len(metadataJSON) > 0 {
		var md agent.Metadata
		if err := json.Unmarshal(metadataJSON, &md); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		r.Metadata = &md
	}
	if err := json.Unmarshal(countsJSON, &r.SourceCounts); err != nil {
		return nil, fmt.Errorf("decode source counts: %w", err)
	}
	return &r, nil
}

// nullableJSON marshals v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
