package ui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TrackTableItem is one offered or received media track.
type TrackTableItem struct {
	Index int
	Kind  string
	Codec string
	File  string
}

func styledTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

// TrackTableView renders tracks as a table.
func TrackTableView(items []TrackTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No tracks")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			kindIcon(item.Kind) + " " + item.Kind,
			item.Codec,
			truncateString(filepath.Base(item.File), 40),
		})
	}
	return styledTable([]string{"#", "Kind", "Codec", "File"}, rows)
}

func RenderTrackTable(items []TrackTableItem) {
	fmt.Println(TrackTableView(items))
}

// SessionSummary is printed once a session has closed.
type SessionSummary struct {
	Status   string
	Reason   string
	Duration string
	Saved    []string
}

func SessionSummaryView(s SessionSummary) string {
	rows := [][]string{
		{"Status", s.Status},
		{"Reason", s.Reason},
		{"Duration", s.Duration},
	}
	for _, path := range s.Saved {
		rows = append(rows, []string{"Saved", path})
	}
	return styledTable([]string{"Metric", "Value"}, rows)
}

func RenderSessionSummary(s SessionSummary) {
	fmt.Println(SessionSummaryView(s))
}

func kindIcon(kind string) string {
	if kind == "video" {
		return IconVideo
	}
	return IconAudio
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
