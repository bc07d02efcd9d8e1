package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/fleethealth/api/pkg/domain/analysis"
)

// =============================================================================
// Response Parsing - shared by all analyzers
// =============================================================================

// ResponseParser parses and validates provider responses against the fixed
// result schema, then sanitizes the analysis text through an HTML allow-list.
type ResponseParser struct {
	validate *validator.Validate
	htmlPol  *bluemonday.Policy
}

// defaultAllowedTags is the platform default HTML allow-list for result
// text. Everything else is stripped.
var defaultAllowedTags = []string{"p", "br", "b", "i", "strong", "em", "ul", "ol", "li"}

// NewResponseParser creates a parser with the standard allow-list.
func NewResponseParser() *ResponseParser {
	return NewResponseParserWithTags(defaultAllowedTags)
}

// NewResponseParserWithTags creates a parser whose allow-list is the given
// tag set.
func NewResponseParserWithTags(tags []string) *ResponseParser {
	pol := bluemonday.NewPolicy()
	pol.AllowElements(tags...)

	return &ResponseParser{
		validate: validator.New(),
		htmlPol:  pol,
	}
}

// Parse strips optional code fences, decodes the JSON document, rejects
// unknown fields, validates the schema bounds, and sanitizes the analysis
// text. Failures surface as validation errors, never silent defaults.
func (p *ResponseParser) Parse(rawText string) (*analysis.Result, error) {
	content := stripCodeFences(rawText)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", analysis.ErrResponseValidation)
	}

	var result analysis.Result
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrResponseValidation, err)
	}

	if err := p.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrResponseValidation, err)
	}

	result.Analysis = strings.TrimSpace(p.htmlPol.Sanitize(result.Analysis))
	if len(result.Analysis) < analysis.MinAnalysisLength {
		return nil, fmt.Errorf("%w: analysis below minimum length after sanitization", analysis.ErrResponseValidation)
	}

	return &result, nil
}

// stripCodeFences removes a surrounding markdown code fence if present.
// Providers occasionally wrap JSON output in ```json blocks despite
// instructions not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// =============================================================================
// Base Analyzer
// =============================================================================

// BaseAnalyzer carries the pieces every concrete analyzer shares: its static
// definition and the response parser.
type BaseAnalyzer struct {
	definition analysis.Definition
	parser     *ResponseParser
}

// NewBaseAnalyzer creates the shared analyzer core. A definition with its
// own tag allow-list gets a dedicated parser; otherwise the shared one is
// used.
func NewBaseAnalyzer(def analysis.Definition, parser *ResponseParser) BaseAnalyzer {
	if len(def.AllowedTags) > 0 {
		parser = NewResponseParserWithTags(def.AllowedTags)
	}
	return BaseAnalyzer{
		definition: def,
		parser:     parser,
	}
}

// Type returns the analysis type.
func (b BaseAnalyzer) Type() string {
	return b.definition.Type
}

// Definition returns the static configuration.
func (b BaseAnalyzer) Definition() analysis.Definition {
	return b.definition
}

// ParseResponse validates the provider's raw text.
func (b BaseAnalyzer) ParseResponse(rawText string) (*analysis.Result, error) {
	return b.parser.Parse(rawText)
}

// DescribeTrend renders the score trend for inclusion in a prompt.
func DescribeTrend(hc *analysis.HistoryContext) string {
	switch analysis.ClassifyTrend(hc.ScoreTrend) {
	case analysis.TrendImproving:
		return "The device's health has been improving."
	case analysis.TrendDeclining:
		return "The device's health has been declining."
	case analysis.TrendStable:
		return "The device's health has been stable."
	case analysis.TrendSingle:
		return "Only one previous analysis exists."
	default:
		return "No previous analyses exist for this device."
	}
}

// FormatHistory renders past analyses for inclusion in a prompt, newest
// first.
func FormatHistory(hc *analysis.HistoryContext) string {
	if len(hc.Analyses) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous analyses (newest first):\n")
	for _, e := range hc.Analyses {
		sb.WriteString(fmt.Sprintf("- %s (score %d): %s\n",
			e.Timestamp.Format("2006-01-02"), e.Score, summarize(e.AnalysisText, 200)))
	}
	return sb.String()
}

func summarize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
