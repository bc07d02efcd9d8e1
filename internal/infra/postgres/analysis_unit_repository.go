package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/shared"
)

const (
	// claimRetries bounds retries against transient store errors
	// (connection loss, deadlock) before surfacing to the caller.
	claimRetries    = 3
	claimRetryDelay = 100 * time.Millisecond
)

// AnalysisUnitRepository implements analysis.Repository using PostgreSQL.
type AnalysisUnitRepository struct {
	db *DB
}

// NewAnalysisUnitRepository creates a new AnalysisUnitRepository.
func NewAnalysisUnitRepository(db *DB) *AnalysisUnitRepository {
	return &AnalysisUnitRepository{db: db}
}

const unitColumns = `
	id, device_id, analysis_type, raw_payload, state,
	result_score, result_text, created_at, analyzed_at, updated_at
`

// ClaimNext atomically claims the oldest pending unit of the given type.
// FOR UPDATE SKIP LOCKED makes rows held by concurrent claimers
// invisible, so two claimers never receive the same unit and no claimer
// blocks on another's candidate. The state flip to processing commits
// in the same transaction as the read.
func (r *AnalysisUnitRepository) ClaimNext(ctx context.Context, analysisType string, excludeIDs []shared.ID) (*analysis.Unit, error) {
	var lastErr error
	for attempt := 0; attempt <= claimRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(claimRetryDelay):
			}
		}

		unit, err := r.claimOnce(ctx, analysisType, excludeIDs)
		if err == nil {
			return unit, nil
		}
		if !isTransientError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("claim next unit: retries exhausted: %w", lastErr)
}

func (r *AnalysisUnitRepository) claimOnce(ctx context.Context, analysisType string, excludeIDs []shared.ID) (*analysis.Unit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exclude := make([]string, 0, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude = append(exclude, id.String())
	}

	selectQuery := `
		SELECT ` + unitColumns + `
		FROM analysis_units
		WHERE state = 'pending'
		  AND analysis_type = $1
		  AND NOT (id = ANY($2::uuid[]))
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	// A lost conditional update means another claimer won the race on
	// this candidate; move on to the next one instead of failing.
	for {
		row := tx.QueryRowContext(ctx, selectQuery, analysisType, pq.Array(exclude))
		unit, err := scanUnit(row)
		if errors.Is(err, sql.ErrNoRows) {
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit claim transaction: %w", err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE analysis_units
			SET state = 'processing', updated_at = NOW()
			WHERE id = $1 AND state = 'pending'
		`, unit.ID())
		if err != nil {
			return nil, fmt.Errorf("mark unit processing: %w", err)
		}

		rowsAffected, _ := res.RowsAffected()
		if rowsAffected == 0 {
			exclude = append(exclude, unit.ID().String())
			continue
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit claim transaction: %w", err)
		}

		_ = unit.MarkProcessing()
		return unit, nil
	}
}

// GetByID retrieves a unit by id.
func (r *AnalysisUnitRepository) GetByID(ctx context.Context, id shared.ID) (*analysis.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM analysis_units WHERE id = $1`

	unit, err := scanUnit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return unit, nil
}

// UpdateResult persists a unit's terminal state. The update is
// conditional on the row still being in processing, preserving the
// forward-only state machine even if a reclaimed copy raced us.
func (r *AnalysisUnitRepository) UpdateResult(ctx context.Context, unit *analysis.Unit) error {
	if !unit.State().IsTerminal() {
		return shared.NewDomainError("STATE", "unit is not in a terminal state", analysis.ErrInvalidTransition)
	}

	query := `
		UPDATE analysis_units
		SET state = $1, result_score = $2, result_text = $3,
		    analyzed_at = $4, updated_at = $5
		WHERE id = $6 AND state = 'processing'
	`

	res, err := r.db.ExecContext(ctx, query,
		unit.State(),
		nullInt(unit.ResultScore()),
		nullString(unit.ResultText()),
		nullTime(unit.AnalyzedAt()),
		unit.UpdatedAt(),
		unit.ID(),
	)
	if err != nil {
		return fmt.Errorf("update unit result: %w", err)
	}

	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		return shared.ErrConflict
	}

	return nil
}

// ListRecentProcessed returns the limit most recent processed units for
// a (device, type) pair, newest first.
func (r *AnalysisUnitRepository) ListRecentProcessed(ctx context.Context, deviceID shared.ID, analysisType string, limit int) ([]*analysis.Unit, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT ` + unitColumns + `
		FROM analysis_units
		WHERE device_id = $1 AND analysis_type = $2 AND state = 'processed'
		ORDER BY analyzed_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, analysisType, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed units: %w", err)
	}
	defer rows.Close()

	var units []*analysis.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed units: %w", err)
	}

	return units, nil
}

// ReclaimStuck returns units stuck in processing back to pending.
// Part of the reconciliation pass, never the per-batch hot path.
func (r *AnalysisUnitRepository) ReclaimStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	query := `
		UPDATE analysis_units
		SET state = 'pending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM analysis_units
			WHERE state = 'processing' AND updated_at < NOW() - $1::interval
			ORDER BY updated_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
	`

	res, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int(olderThan.Seconds())), limit)
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck units: %w", err)
	}

	rowsAffected, _ := res.RowsAffected()
	return int(rowsAffected), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (*analysis.Unit, error) {
	var (
		id           shared.ID
		deviceID     shared.ID
		analysisType string
		payloadJSON  []byte
		state        string
		resultScore  sql.NullInt32
		resultText   sql.NullString
		createdAt    time.Time
		analyzedAt   sql.NullTime
		updatedAt    time.Time
	)

	err := row.Scan(
		&id, &deviceID, &analysisType, &payloadJSON, &state,
		&resultScore, &resultText, &createdAt, &analyzedAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan unit: %w", err)
	}

	var payload map[string]any
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal raw_payload: %w", err)
		}
	}

	return analysis.ReconstituteUnit(
		id, deviceID, analysisType, payload,
		analysis.UnitState(state),
		nullIntValue(resultScore),
		nullStringValue(resultText),
		createdAt,
		nullTimeValue(analyzedAt),
		updatedAt,
	), nil
}
