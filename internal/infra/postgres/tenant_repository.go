package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/domain/tenant"
)

// TenantRepository implements tenant.Repository using PostgreSQL.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID retrieves a tenant by id.
func (r *TenantRepository) GetByID(ctx context.Context, id shared.ID) (*tenant.Tenant, error) {
	query := `
		SELECT id, name, credit_balance, recurring_enabled, analysis_types,
		       created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	var (
		tenantID          shared.ID
		name              string
		creditBalance     int
		recurringEnabled  bool
		analysisTypesJSON []byte
		createdAt         time.Time
		updatedAt         time.Time
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tenantID, &name, &creditBalance, &recurringEnabled,
		&analysisTypesJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}

	var analysisTypes map[string]bool
	if len(analysisTypesJSON) > 0 {
		if err := json.Unmarshal(analysisTypesJSON, &analysisTypes); err != nil {
			return nil, fmt.Errorf("unmarshal analysis_types: %w", err)
		}
	}

	return tenant.Reconstitute(
		tenantID, name, creditBalance, recurringEnabled,
		analysisTypes, createdAt, updatedAt,
	), nil
}

// DeductCredits performs a single compare-and-decrement. The WHERE
// clause guarantees the balance never goes negative even when
// concurrent workers charge the same tenant across analysis types.
func (r *TenantRepository) DeductCredits(ctx context.Context, id shared.ID, cost int) (bool, error) {
	if cost <= 0 {
		return false, shared.NewDomainError("VALIDATION", "cost must be positive", shared.ErrValidation)
	}

	query := `
		UPDATE tenants
		SET credit_balance = credit_balance - $2, updated_at = NOW()
		WHERE id = $1 AND credit_balance >= $2
	`

	res, err := r.db.ExecContext(ctx, query, id, cost)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}

	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}

// DisableRecurring flips recurring_enabled true -> false. The
// conditional update makes the circuit breaker fire exactly once: only
// the caller whose update affects a row performed the flip.
func (r *TenantRepository) DisableRecurring(ctx context.Context, id shared.ID) (bool, error) {
	query := `
		UPDATE tenants
		SET recurring_enabled = FALSE, updated_at = NOW()
		WHERE id = $1 AND recurring_enabled = TRUE
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("disable recurring analyses: %w", err)
	}

	rowsAffected, _ := res.RowsAffected()
	return rowsAffected > 0, nil
}
