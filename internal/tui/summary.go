package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tinyme-go/internal/statistics"
)

// SummaryRow is one label/value line of the end-of-run table.
type SummaryRow struct {
	Label string
	Value string
}

// RenderSummary draws rows as a two-column table between horizontal rules.
// Columns are sized by display width, so non-ASCII labels stay aligned.
func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, hline)
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s | %s",
			labelStyle.Render(padRight(row.Label, labelWidth)),
			valueStyle.Render(padRight(row.Value, valueWidth))))
	}
	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// SummaryRows turns run statistics into rows for RenderSummary.
func SummaryRows(s statistics.Summary) []SummaryRow {
	return []SummaryRow{
		{Label: "Files compressed", Value: fmt.Sprintf("%d/%d", s.Completed, s.Total)},
		{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
		{Label: "Original size", Value: statistics.FormatBytes(s.OriginalBytes)},
		{Label: "Compressed size", Value: statistics.FormatBytes(s.CompressedBytes)},
		{Label: "Space saved", Value: fmt.Sprintf("%s (%.1f%%)", statistics.FormatBytes(s.Saved()), s.CompressionRatio*100)},
	}
}

// padRight pads s with spaces up to width display columns.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
