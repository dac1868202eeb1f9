package tui

import (
	"github.com/charmbracelet/lipgloss"

	"tinyme-go/internal/jobs"
)

var (
	ColorInk     = lipgloss.Color("#E5E9F0")
	ColorDim     = lipgloss.Color("#7A8291")
	ColorAccent  = lipgloss.Color("#88C0D0")
	ColorSuccess = lipgloss.Color("#A3BE8C")
	ColorWarn    = lipgloss.Color("#EBCB8B")
	ColorError   = lipgloss.Color("#BF616A")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)

func statusStyle(s jobs.Status) lipgloss.Style {
	switch s {
	case jobs.StatusDone:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case jobs.StatusError:
		return lipgloss.NewStyle().Foreground(ColorError)
	case jobs.StatusProcessing:
		return lipgloss.NewStyle().Foreground(ColorWarn)
	default:
		return dimStyle
	}
}
