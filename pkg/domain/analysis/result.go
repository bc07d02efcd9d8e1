package analysis

import "time"

// Result bounds for validated analyzer output.
const (
	MinAnalysisLength = 50
	MaxAnalysisLength = 10000
	MinScore          = 1
	MaxScore          = 100
)

// Result is the validated output of an analyzer: a sanitized analysis
// text and an integer health score.
type Result struct {
	Analysis string `json:"analysis" validate:"required,min=50,max=10000"`
	Score    int    `json:"score" validate:"required,min=1,max=100"`
}

// HistoryEntry is one prior processed analysis for a (device, type) pair.
type HistoryEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	AnalysisText string    `json:"analysis_text"`
	Score        int       `json:"score"`
}

// HistoryContext carries recent processed results for trend-aware
// prompting. ScoreTrend is ordered newest first.
type HistoryContext struct {
	Analyses   []HistoryEntry `json:"analyses"`
	ScoreTrend []int          `json:"score_trend"`
	LastScore  *int           `json:"last_score,omitempty"`
}

// EmptyHistoryContext returns the degraded shape used when history
// cannot be fetched. History is an enhancement, never a hard dependency.
func EmptyHistoryContext() *HistoryContext {
	return &HistoryContext{
		Analyses:   []HistoryEntry{},
		ScoreTrend: []int{},
	}
}

// Trend classifies the relative ordering of a score trend.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendSingle    Trend = "single-data-point"
	TrendNone      Trend = "none"
)

// ClassifyTrend classifies a newest-first score trend by relative
// ordering, not magnitude.
func ClassifyTrend(scores []int) Trend {
	switch len(scores) {
	case 0:
		return TrendNone
	case 1:
		return TrendSingle
	}

	newest := scores[0]
	oldest := scores[len(scores)-1]
	switch {
	case newest > oldest:
		return TrendImproving
	case newest < oldest:
		return TrendDeclining
	default:
		return TrendStable
	}
}
