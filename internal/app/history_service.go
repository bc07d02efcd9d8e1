package app

import (
	"context"

	"github.com/fleethealth/api/internal/infra/redis"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/logger"
)

// DefaultHistoryLimit is the number of past analyses provided as context.
const DefaultHistoryLimit = 5

// HistoryService provides historical analysis context for a device.
// History is an enhancement: any store or cache failure degrades to the
// empty context instead of propagating.
type HistoryService struct {
	units  analysis.Repository
	cache  *redis.Cache[analysis.HistoryContext]
	logger *logger.Logger
}

// NewHistoryService creates a new history service. The cache is optional;
// when nil, every call hits the store directly.
func NewHistoryService(units analysis.Repository, cache *redis.Cache[analysis.HistoryContext], log *logger.Logger) *HistoryService {
	return &HistoryService{
		units:  units,
		cache:  cache,
		logger: log.With("component", "history_service"),
	}
}

// GetContext returns the most recent processed analyses for the device and
// type, newest first, with the score trend derived from the same set.
func (s *HistoryService) GetContext(ctx context.Context, deviceID shared.ID, analysisType string) *analysis.HistoryContext {
	if s.cache == nil {
		return s.load(ctx, deviceID, analysisType)
	}

	key := deviceID.String() + ":" + analysisType
	hc, err := s.cache.GetOrSetFallback(ctx, key, func(ctx context.Context) (*analysis.HistoryContext, error) {
		return s.loadErr(ctx, deviceID, analysisType)
	})
	if err != nil {
		s.logger.Warn("history lookup failed, degrading to empty context",
			"device_id", deviceID,
			"analysis_type", analysisType,
			"error", err,
		)
		return analysis.EmptyHistoryContext()
	}
	return hc
}

// Invalidate drops the cached context for a device and type. Called after a
// unit reaches a terminal state so the next run sees fresh history.
func (s *HistoryService) Invalidate(ctx context.Context, deviceID shared.ID, analysisType string) {
	if s.cache == nil {
		return
	}
	key := deviceID.String() + ":" + analysisType
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("history cache invalidation failed",
			"device_id", deviceID,
			"error", err,
		)
	}
}

func (s *HistoryService) load(ctx context.Context, deviceID shared.ID, analysisType string) *analysis.HistoryContext {
	hc, err := s.loadErr(ctx, deviceID, analysisType)
	if err != nil {
		s.logger.Warn("history lookup failed, degrading to empty context",
			"device_id", deviceID,
			"analysis_type", analysisType,
			"error", err,
		)
		return analysis.EmptyHistoryContext()
	}
	return hc
}

func (s *HistoryService) loadErr(ctx context.Context, deviceID shared.ID, analysisType string) (*analysis.HistoryContext, error) {
	units, err := s.units.ListRecentProcessed(ctx, deviceID, analysisType, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	hc := analysis.EmptyHistoryContext()
	for _, u := range units {
		score := 0
		if u.ResultScore() != nil {
			score = *u.ResultScore()
		}
		entry := analysis.HistoryEntry{
			AnalysisText: u.ResultText(),
			Score:        score,
		}
		if u.AnalyzedAt() != nil {
			entry.Timestamp = *u.AnalyzedAt()
		}
		hc.Analyses = append(hc.Analyses, entry)
		hc.ScoreTrend = append(hc.ScoreTrend, score)
	}

	if len(hc.ScoreTrend) > 0 {
		last := hc.ScoreTrend[0]
		hc.LastScore = &last
	}

	return hc, nil
}
