package app

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Prompt Injection Protection
// =============================================================================

// PromptSanitizer sanitizes device-reported data before inclusion in prompts.
type PromptSanitizer struct {
	maxFieldLength int
	patterns       []*regexp.Regexp
}

// NewPromptSanitizer creates a new prompt sanitizer.
func NewPromptSanitizer() *PromptSanitizer {
	raw := []string{
		// Direct instruction override
		`(?i)ignore (previous|above|all|prior|system) instructions?`,
		`(?i)disregard (previous|above|all|prior|system) instructions?`,
		`(?i)forget (previous|above|all|prior|system) instructions?`,
		`(?i)override (previous|above|all|prior|system) instructions?`,
		// New instruction injection
		`(?i)new instructions?:`,
		`(?i)updated instructions?:`,
		`(?i)actual instructions?:`,
		// System prompt access
		`(?i)system prompt:`,
		`(?i)system message:`,
		`(?i)(output|reveal|show|print) (the|your) (system|initial) (prompt|instructions?)`,
		// Role manipulation
		`(?i)you are now`,
		`(?i)from now on,? you`,
		`(?i)act as if`,
		`(?i)pretend (that|to be|you)`,
		`(?i)roleplay as`,
		// Special tokens
		`(?i)\[SYSTEM\]`,
		`(?i)\[INST\]`,
		`(?i)<\|im_start\|>`,
		`(?i)<\|im_end\|>`,
		`(?i)<\|system\|>`,
		`(?i)<<SYS>>`,
		`(?i)### (System|Instruction|Human|Assistant):?`,
		// Security bypass attempts
		`(?i)jailbreak`,
		`(?i)developer mode`,
		`(?i)admin mode`,
	}

	patterns := make([]*regexp.Regexp, len(raw))
	for i, p := range raw {
		patterns[i] = regexp.MustCompile(p)
	}

	return &PromptSanitizer{
		maxFieldLength: 10000,
		patterns:       patterns,
	}
}

// SanitizeForPrompt sanitizes a string for inclusion in an LLM prompt.
// Applies unicode normalization to prevent bypass via homoglyphs.
func (s *PromptSanitizer) SanitizeForPrompt(text string) string {
	if text == "" {
		return ""
	}

	text = normalizeUnicode(text)

	if len(text) > s.maxFieldLength {
		text = text[:s.maxFieldLength] + "\n[TRUNCATED]"
	}

	for _, re := range s.patterns {
		text = re.ReplaceAllString(text, "[FILTERED]")
	}

	return text
}

// normalizeUnicode applies NFKC normalization, strips invisible control
// characters, and folds common Cyrillic lookalikes to their Latin forms.
// Fullwidth and mathematical alphanumeric variants would otherwise bypass
// the ASCII-based injection filters above.
func normalizeUnicode(text string) string {
	transformer := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.Predicate(func(r rune) bool {
			if r == '\n' || r == '\r' || r == '\t' {
				return false
			}
			if unicode.IsControl(r) {
				return true
			}
			// Zero-width characters
			if r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff' {
				return true
			}
			// Directional overrides
			if r >= '\u202a' && r <= '\u202e' {
				return true
			}
			return false
		})),
	)

	result, _, err := transform.String(transformer, text)
	if err != nil {
		return text
	}

	homoglyphs := map[rune]rune{
		'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p',
		'с': 'c', 'у': 'y', 'х': 'x',
		'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M',
		'Н': 'H', 'О': 'O', 'Р': 'P', 'С': 'C', 'Т': 'T',
		'У': 'Y', 'Х': 'X',
	}

	var sb strings.Builder
	sb.Grow(len(result))
	for _, r := range result {
		if repl, ok := homoglyphs[r]; ok {
			sb.WriteRune(repl)
		} else {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
