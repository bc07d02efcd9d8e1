package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleethealth/api/pkg/logger"
)

// Scheduler runs the worker loop for each registered analysis type on a
// fixed polling interval. Each type polls independently so a slow type
// cannot starve the others.
type Scheduler struct {
	service      *AnalysisService
	registry     *AnalyzerRegistry
	pollInterval time.Duration
	batchSize    int
	logger       *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewScheduler creates a scheduler over all registered analyzer types.
func NewScheduler(service *AnalysisService, registry *AnalyzerRegistry, pollInterval time.Duration, batchSize int, log *logger.Logger) *Scheduler {
	return &Scheduler{
		service:      service,
		registry:     registry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       log.With("component", "scheduler"),
	}
}

// Start launches one polling loop per analysis type. It returns
// immediately; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	for _, analysisType := range s.registry.Types() {
		g.Go(func() error {
			s.pollLoop(ctx, analysisType)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(s.stopped)
	}()

	s.logger.Info("scheduler started",
		"types", s.registry.Types(),
		"poll_interval", s.pollInterval,
		"batch_size", s.batchSize,
	)
}

// Stop cancels all polling loops and waits for them to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context, analysisType string) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.service.RunBatch(ctx, analysisType, s.batchSize); err != nil {
				s.logger.Error("batch run failed",
					"analysis_type", analysisType,
					"error", err,
				)
			}
		}
	}
}
