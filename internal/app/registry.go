package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fleethealth/api/pkg/domain/analysis"
)

// AnalyzerRegistry holds the analyzers known to this worker, keyed by
// analysis type. Registration happens at startup; lookups are read-only
// afterwards.
type AnalyzerRegistry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewAnalyzerRegistry creates an empty registry.
func NewAnalyzerRegistry() *AnalyzerRegistry {
	return &AnalyzerRegistry{
		analyzers: make(map[string]Analyzer),
	}
}

// Register adds an analyzer to the registry. Registering the same type
// twice is a programming error.
func (r *AnalyzerRegistry) Register(a Analyzer) error {
	if a == nil {
		return fmt.Errorf("analyzer is required")
	}
	if err := a.Definition().Validate(); err != nil {
		return fmt.Errorf("invalid definition for %q: %w", a.Type(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.analyzers[a.Type()]; exists {
		return fmt.Errorf("analyzer %q already registered", a.Type())
	}
	r.analyzers[a.Type()] = a
	return nil
}

// Get returns the analyzer for a type, or ErrUnknownAnalyzerType.
func (r *AnalyzerRegistry) Get(analysisType string) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analyzers[analysisType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", analysis.ErrUnknownAnalyzerType, analysisType)
	}
	return a, nil
}

// Types returns the registered analysis types, sorted.
func (r *AnalyzerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.analyzers))
	for t := range r.analyzers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
