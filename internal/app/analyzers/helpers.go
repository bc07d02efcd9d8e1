// Package analyzers contains the concrete analysis types known to the
// worker. Each type embeds the shared analyzer core and contributes its
// own prompt.
package analyzers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fleethealth/api/internal/app"
)

// renderPayload formats the unit's raw telemetry for prompt inclusion.
// Values pass through the prompt sanitizer since they originate on the
// device.
func renderPayload(sanitizer *app.PromptSanitizer, payload map[string]any) string {
	if len(payload) == 0 {
		return "(no telemetry reported)"
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return sanitizer.SanitizeForPrompt(string(data))
}

// buildPrompt assembles the standard prompt sections shared by all types.
func buildPrompt(sanitizer *app.PromptSanitizer, rc app.RunContext, intro string) string {
	var sb strings.Builder

	sb.WriteString(intro)
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Device: %s (%s %s)\n\n",
		sanitizer.SanitizeForPrompt(rc.Hierarchy.Device.Name),
		sanitizer.SanitizeForPrompt(rc.Hierarchy.Device.OSName),
		sanitizer.SanitizeForPrompt(rc.Hierarchy.Device.OSVersion),
	))

	sb.WriteString("Telemetry:\n")
	sb.WriteString(renderPayload(sanitizer, rc.Unit.RawPayload()))
	sb.WriteString("\n\n")

	if history := app.FormatHistory(rc.History); history != "" {
		sb.WriteString(history)
		sb.WriteString(app.DescribeTrend(rc.History))
		sb.WriteString("\n\n")
	}

	if len(rc.DataSources) > 0 {
		data, err := json.MarshalIndent(rc.DataSources, "", "  ")
		if err == nil {
			sb.WriteString("Supplementary data:\n")
			sb.WriteString(sanitizer.SanitizeForPrompt(string(data)))
			sb.WriteString("\n\n")
		}
	}

	if rc.PolicyBlock != "" {
		sb.WriteString(rc.PolicyBlock)
		sb.WriteString("\n")
	}

	return sb.String()
}
