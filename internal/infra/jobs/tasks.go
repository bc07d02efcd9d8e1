package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// =============================================================================
// Task Types
// =============================================================================

const (
	// TypeAggregateRecompute is the task type for recomputing health
	// aggregates after an analysis unit reaches a terminal state.
	TypeAggregateRecompute = "analysis:aggregate_recompute"
)

// =============================================================================
// Task Payloads
// =============================================================================

// AggregateRecomputePayload identifies the hierarchy whose aggregates need
// recomputing.
type AggregateRecomputePayload struct {
	DeviceID       string `json:"device_id"`
	GroupID        string `json:"group_id"`
	OrganisationID string `json:"organisation_id"`
	TenantID       string `json:"tenant_id"`
	AnalysisType   string `json:"analysis_type"`
}

// =============================================================================
// Task Creators
// =============================================================================

// NewAggregateRecomputeTask creates a task for recomputing health aggregates.
func NewAggregateRecomputeTask(payload AggregateRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate recompute payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(1 * time.Minute),
		asynq.Queue("aggregates"),
	}

	return asynq.NewTask(TypeAggregateRecompute, data, opts...), nil
}
