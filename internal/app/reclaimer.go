package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fleethealth/api/internal/metrics"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/logger"
)

// Reclaimer returns stuck processing units to pending on a cron schedule.
// Units end up stuck when a worker skips them (disabled tenant, missing
// hierarchy, insufficient balance) or crashes mid-batch.
type Reclaimer struct {
	units     analysis.Repository
	olderThan time.Duration
	limit     int
	logger    *logger.Logger

	cron *cron.Cron
}

// NewReclaimer creates a reclaimer for processing units older than the
// given age.
func NewReclaimer(units analysis.Repository, olderThan time.Duration, limit int, log *logger.Logger) *Reclaimer {
	return &Reclaimer{
		units:     units,
		olderThan: olderThan,
		limit:     limit,
		logger:    log.With("component", "reclaimer"),
	}
}

// Start schedules the reclaim pass. The schedule accepts standard cron
// expressions and the @every shorthand.
func (r *Reclaimer) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		r.Run(ctx)
	})
	if err != nil {
		return err
	}

	c.Start()
	r.cron = c
	r.logger.Info("reclaimer started", "schedule", schedule, "older_than", r.olderThan)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reclaimer) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info("reclaimer stopped")
}

// Run executes a single reclaim pass.
func (r *Reclaimer) Run(ctx context.Context) {
	n, err := r.units.ReclaimStuck(ctx, r.olderThan, r.limit)
	if err != nil {
		r.logger.Error("reclaim pass failed", "error", err)
		return
	}
	if n > 0 {
		metrics.UnitsReclaimedTotal.Add(float64(n))
		r.logger.Info("stuck units reclaimed", "count", n)
	}
}
