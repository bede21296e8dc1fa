package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/operator/pkg/artifact"
	"github.com/entrhq/operator/pkg/types"
)

var (
	mintGreen = lipgloss.Color("#A8E6CF")
	errorRed  = lipgloss.Color("203")
	amber     = lipgloss.Color("#FFD580")
	mutedGray = lipgloss.Color("#6B7280")
)

// renderSummary draws the result box printed at the end of a run.
func renderSummary(report *artifact.Report, outputDir string) string {
	outcome := types.OutcomeError
	message := report.Error
	steps := 0
	finalURL := ""
	if res := report.Result; res != nil {
		outcome = res.Outcome
		if message == "" {
			message = res.Message
		}
		steps = res.Steps
		finalURL = res.FinalURL
	}

	border := amber
	icon := "❔"
	switch outcome {
	case types.OutcomePass:
		border, icon = mintGreen, "✅"
	case types.OutcomeFail, types.OutcomeError:
		border, icon = errorRed, "❌"
	}

	label := lipgloss.NewStyle().Foreground(mutedGray)
	var content strings.Builder
	content.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s %s", icon, strings.ToUpper(string(outcome)))))
	content.WriteString("\n\n")
	content.WriteString(label.Render("Task:     ") + report.Task + "\n")
	content.WriteString(label.Render("Steps:    ") + fmt.Sprintf("%d", steps) + "\n")
	content.WriteString(label.Render("Duration: ") + report.Duration.Round(100*time.Millisecond).String() + "\n")
	if finalURL != "" {
		content.WriteString(label.Render("Page:     ") + finalURL + "\n")
	}
	if outputDir != "" {
		content.WriteString(label.Render("Output:   ") + outputDir + "\n")
	}
	if message != "" {
		content.WriteString("\n" + message)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(80)

	return box.Render(strings.TrimRight(content.String(), "\n"))
}
