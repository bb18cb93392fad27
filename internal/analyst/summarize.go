package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/logger"
)

// Summarize renders the estimate as a client-facing HTML fragment. The model
// writes the prose; any failure falls back to the deterministic renderer so an
// estimate is never lost to a flaky provider.
func (a *Analyst) Summarize(ctx context.Context, sum *estimate.Summary) string {
	if a.provider == nil {
		return renderSummaryHTML(sum)
	}
	payload, err := json.Marshal(sum)
	if err != nil {
		return renderSummaryHTML(sum)
	}
	raw, err := a.provider.Chat(ctx, provider.ChatRequest{
		Purpose:     "estimate-summary",
		System:      summarySystemPrompt,
		User:        "Estimate data:\n" + string(payload),
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		logger.Warnf("summary generation failed, using fallback: %v", err)
		return renderSummaryHTML(sum)
	}
	return stripNextSteps(toHTML(raw))
}

// renderSummaryHTML is the provider-free rendering of a summary.
func renderSummaryHTML(sum *estimate.Summary) string {
	var sb strings.Builder
	sb.WriteString("<b>Project Estimate</b><br/><br/>")
	sb.WriteString(fmt.Sprintf("Estimated effort: <b>%.1f hours</b> (%.1f&ndash;%.1f hours)<br/>",
		sum.TotalTimeHours, sum.TimeRangeHours.Min, sum.TimeRangeHours.Max))
	sb.WriteString(fmt.Sprintf("Estimated cost: <b>$%.2f</b> ($%.2f&ndash;$%.2f)<br/>",
		sum.TotalCost, sum.CostRange.Min, sum.CostRange.Max))
	if sum.Timeline != "" {
		sb.WriteString("Timeline: " + sum.Timeline + "<br/>")
	}
	sb.WriteString("<br/><b>Features</b><ul>")
	for _, f := range sum.Features {
		sb.WriteString(fmt.Sprintf("<li>%s: %.1f hours (%s)</li>", f.Name, f.Hours, f.Complexity))
	}
	sb.WriteString("</ul>")
	if len(sum.Assumptions) > 0 {
		sb.WriteString("<br/><b>Assumptions</b><ul>")
		for _, a := range sum.Assumptions {
			sb.WriteString("<li>" + a + "</li>")
		}
		sb.WriteString("</ul>")
	}
	return sb.String()
}
