package council

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// SoyArchive implements Archive using soy for persistence.
type SoyArchive struct {
	runs  *soy.Soy[RunRecord]
	turns *soy.Soy[TurnRecord]
	db    *sqlx.DB
}

// NewSoyArchive creates a new soy-backed Archive implementation.
func NewSoyArchive(db *sqlx.DB) (*SoyArchive, error) {
	renderer := postgres.New()

	runs, err := soy.New[RunRecord](db, "council_runs", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runs table: %w", err)
	}

	turns, err := soy.New[TurnRecord](db, "council_turns", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize turns table: %w", err)
	}

	return &SoyArchive{
		runs:  runs,
		turns: turns,
		db:    db,
	}, nil
}

// SaveRun persists a completed run and all its turns.
func (a *SoyArchive) SaveRun(ctx context.Context, result *CouncilResult) error {
	run, turns := newRunRecords(result)

	inserted, err := a.runs.Insert().Exec(ctx, &run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i := range turns {
		turns[i].RunID = inserted.ID
		if _, err := a.turns.Insert().Exec(ctx, &turns[i]); err != nil {
			return fmt.Errorf("failed to insert turn %d: %w", turns[i].Position, err)
		}
	}

	return nil
}

// GetRun loads a run and its turns by trace ID, turns in position order.
func (a *SoyArchive) GetRun(ctx context.Context, traceID string) (*RunRecord, []TurnRecord, error) {
	run, err := a.runs.Select().
		Where("trace_id", "=", "trace_id").
		Exec(ctx, map[string]any{"trace_id": traceID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run: %w", err)
	}

	turnPtrs, err := a.turns.Query().
		Where("run_id", "=", "run_id").
		OrderBy("position", "asc").
		Exec(ctx, map[string]any{"run_id": run.ID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get turns: %w", err)
	}

	turns := make([]TurnRecord, len(turnPtrs))
	for i, t := range turnPtrs {
		turns[i] = *t
	}
	return run, turns, nil
}

// ListRuns returns the most recent runs, newest first.
func (a *SoyArchive) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	runPtrs, err := a.runs.Query().
		OrderBy("created_at", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]RunRecord, len(runPtrs))
	for i, r := range runPtrs {
		runs[i] = *r
	}
	return runs, nil
}

// DeleteRun removes a run and all its turns.
func (a *SoyArchive) DeleteRun(ctx context.Context, traceID string) error {
	run, err := a.runs.Select().
		Where("trace_id", "=", "trace_id").
		Exec(ctx, map[string]any{"trace_id": traceID})
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	// Delete turns first (foreign key constraint)
	_, err = a.turns.Remove().
		Where("run_id", "=", "run_id").
		Exec(ctx, map[string]any{"run_id": run.ID})
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}

	_, err = a.runs.Remove().
		Where("id", "=", "id").
		Exec(ctx, map[string]any{"id": run.ID})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (a *SoyArchive) Close() error {
	return a.db.Close()
}

var _ Archive = (*SoyArchive)(nil)
