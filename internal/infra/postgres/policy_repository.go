package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fleethealth/api/pkg/domain/policy"
	"github.com/fleethealth/api/pkg/domain/shared"
)

// PolicyRepository implements policy.Repository using PostgreSQL.
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetForEntity retrieves the policy for one (level, entity, type)
// triple. At most one row exists per triple; absence is (nil, nil).
func (r *PolicyRepository) GetForEntity(ctx context.Context, level policy.Level, entityID shared.ID, analysisType string) (*policy.ExclusionPolicy, error) {
	query := `
		SELECT id, level, entity_id, analysis_type, exclusions, priorities
		FROM exclusion_policies
		WHERE level = $1 AND entity_id = $2 AND analysis_type = $3
	`

	var p policy.ExclusionPolicy
	var exclusions, priorities sql.NullString

	err := r.db.QueryRowContext(ctx, query, level, entityID, analysisType).Scan(
		&p.ID, &p.Level, &p.EntityID, &p.AnalysisType, &exclusions, &priorities,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exclusion policy: %w", err)
	}

	p.Exclusions = nullStringValue(exclusions)
	p.Priorities = nullStringValue(priorities)
	return &p, nil
}
