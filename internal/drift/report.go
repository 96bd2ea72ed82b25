package drift

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/provgraph/engine/internal/model"
)

// RenderJSON marshals r as indented canonical-ish JSON for machine
// consumption.
func RenderJSON(r model.DriftResult) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// RenderHuman renders a short plain-text summary for terminal output.
func RenderHuman(r model.DriftResult) string {
	var b strings.Builder
	if !r.HasDrift {
		fmt.Fprintf(&b, "no drift detected (similarity %.2f)\n", r.Similarity)
		return b.String()
	}
	fmt.Fprintf(&b, "drift detected: similarity=%.2f score=%.2f\n", r.Similarity, r.DriftScore)
	for _, d := range r.Differences {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", d.Severity, d.Type, d.Description)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "recommendation (%s/%s): %s\n", rec.Type, rec.Severity, rec.Message)
	}
	return b.String()
}

// RenderMarkdown renders r as a Markdown section suitable for a PR comment.
func RenderMarkdown(r model.DriftResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Drift report (%s)\n\n", r.DetectionID)
	fmt.Fprintf(&b, "- Has drift: `%t`\n", r.HasDrift)
	fmt.Fprintf(&b, "- Similarity: `%.4f`\n", r.Similarity)
	fmt.Fprintf(&b, "- Drift score: `%.4f`\n\n", r.DriftScore)
	if len(r.Differences) > 0 {
		b.WriteString("| Severity | Type | Description |\n|---|---|---|\n")
		for _, d := range r.Differences {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", d.Severity, d.Type, d.Description)
		}
		b.WriteString("\n")
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "> **%s** (%s): %s\n", rec.Type, rec.Severity, rec.Message)
	}
	return b.String()
}
