package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/search"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6")).
			MarginBottom(1)

	bestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

func trainerTable(entries []trainer.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TRAINER", "KIND")
	for _, e := range entries {
		t.Row(string(e.Name), string(e.Kind))
	}
	return t.String()
}

// sweepSummary renders one row per trial, the best trial highlighted
func sweepSummary(result *search.Result) string {
	sweep := result.Sweep
	title := titleStyle.Render(fmt.Sprintf("Sweep %s: %s, %d trials, %d failed, %s",
		sweep.ID, sweep.Status, sweep.TrialsRun, sweep.TrialsFailed,
		(time.Duration(sweep.ElapsedMillis) * time.Millisecond).String()))

	bestRow := -1
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "TRAINER", "MICRO", "MACRO", "DURATION", "ERROR")
	for i, trial := range result.Trials {
		micro, macro := "-", "-"
		if trial.Status == models.TrialStatusSucceeded && trial.Metrics != nil {
			micro = fmt.Sprintf("%.4f", trial.Metrics.MicroAccuracy)
			macro = fmt.Sprintf("%.4f", trial.Metrics.MacroAccuracy)
		}
		if result.Best != nil && trial.ID == result.Best.ID {
			bestRow = i
		}
		t.Row(fmt.Sprint(trial.Index), string(trial.TrainerName), micro, macro,
			trial.Duration.Round(time.Millisecond).String(), trial.Error)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return lipgloss.NewStyle().Bold(true)
		case row == bestRow:
			return bestStyle
		case row >= 0 && col == 5:
			return errorStyle
		}
		return lipgloss.NewStyle()
	})

	return lipgloss.JoinVertical(lipgloss.Left, title, t.String())
}
