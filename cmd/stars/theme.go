package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"weekly-stars/pkg/ledger"
)

var (
	cPrimary = lipgloss.Color("63")
	cGood    = lipgloss.Color("42")
	cGold    = lipgloss.Color("220")
	cMuted   = lipgloss.Color("244")
)

var (
	title = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	muted = lipgloss.NewStyle().Foreground(cMuted)
	panel = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
)

func stars(n int) string {
	if n <= 0 {
		return muted.Render("–")
	}
	if n > 20 {
		return gold.Render(fmt.Sprintf("★ ×%d", n))
	}
	return gold.Render(strings.Repeat("★", n))
}

func row(label string, n int) string {
	return fmt.Sprintf("%-18s %3d  %s", label, n, stars(n))
}

// printSnapshot renders the balance card shown after every command.
func printSnapshot(w io.Writer, s ledger.Snapshot) {
	body := strings.Join([]string{
		title.Render("Stars this week"),
		row("Task stars", s.TotalStars),
		row("Available", s.AvailableStars),
		row("In the safe", s.StarsInSafe),
		muted.Render(fmt.Sprintf("earned %d · used %d · spent %d · from challenges %d",
			s.TotalStarsEarned, s.TotalStarsUsed, s.StarsSpent, s.ChallengeStars)),
	}, "\n")
	fmt.Fprintln(w, panel.Render(body))
}
