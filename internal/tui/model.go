// Package tui renders live compression progress for the compress command.
package tui

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tinyme-go/internal/jobs"
	"tinyme-go/internal/statistics"
)

// maxRows caps the per-file list; the rest is summarised on one line.
const maxRows = 12

type Model struct {
	events   <-chan jobs.Event
	cancel   context.CancelFunc
	started  time.Time
	width    int
	order    []string
	jobs     map[string]jobs.Job
	quitting bool
	aborted  bool
}

type doneMsg struct{}

type eventMsg jobs.Event

// NewModel seeds the view with the tracked jobs and follows events until the
// channel closes. cancel is called when the user quits early.
func NewModel(initial []jobs.Job, events <-chan jobs.Event, cancel context.CancelFunc) Model {
	m := Model{
		events:  events,
		cancel:  cancel,
		started: time.Now(),
		jobs:    make(map[string]jobs.Job, len(initial)),
	}
	for _, job := range initial {
		m.order = append(m.order, job.ID)
		m.jobs[job.ID] = job
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m = m.apply(jobs.Event(msg))
		return m, listenForEvents(m.events)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) apply(ev jobs.Event) Model {
	id := ev.Job.ID
	current, known := m.jobs[id]
	if known && ev.Job.Revision < current.Revision {
		return m
	}
	if ev.Removed {
		if known {
			delete(m.jobs, id)
			order := make([]string, 0, len(m.order))
			for _, oid := range m.order {
				if oid != id {
					order = append(order, oid)
				}
			}
			m.order = order
		}
		return m
	}
	if !known {
		m.order = append(m.order, id)
	}
	m.jobs[id] = ev.Job
	return m
}

// Snapshot returns the jobs as currently displayed, in order.
func (m Model) Snapshot() []jobs.Job {
	out := make([]jobs.Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id])
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 30
	if m.width > 0 {
		barWidth = int(math.Min(40, float64(m.width-50)))
		if barWidth < 10 {
			barWidth = 10
		}
	}

	snapshot := m.Snapshot()
	stats := statistics.Compute(snapshot)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("tinyme"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", stats.Completed+stats.Failed, stats.Total)) +
			dimStyle.Render(fmt.Sprintf("  errors:%d", stats.Failed)),
		barStyle.Render(renderBar(barWidth, float64(stats.OverallProgress)/100)),
	}

	for i, job := range snapshot {
		if i == maxRows {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("... and %d more", len(snapshot)-maxRows)))
			break
		}
		lines = append(lines, renderRow(job, barWidth/2))
	}

	lines = append(lines,
		labelStyle.Render(fmt.Sprintf("Saved: %s", statistics.FormatBytes(stats.Saved()))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
	)
	if m.aborted {
		lines = append(lines, warnStyle.Render("Cancelling..."))
	} else {
		lines = append(lines, dimStyle.Render("q to cancel"))
	}

	return strings.Join(lines, "\n")
}

func renderRow(job jobs.Job, barWidth int) string {
	name := padRight(truncate(filepath.Base(job.SourcePath), 28), 28)
	status := statusStyle(job.Status).Render(padRight(string(job.Status), 10))
	detail := ""
	switch job.Status {
	case jobs.StatusDone:
		detail = fmt.Sprintf("%s -> %s", statistics.FormatBytes(job.OriginalSize), statistics.FormatBytes(job.CompressedSize))
	case jobs.StatusError:
		detail = truncate(job.ErrorDetail, 40)
	default:
		detail = fmt.Sprintf("%3d%%", job.Progress)
	}
	return fmt.Sprintf("%s %s %s %s", labelStyle.Render(name), status,
		barStyle.Render(renderBar(barWidth, float64(job.Progress)/100)), dimStyle.Render(detail))
}

func listenForEvents(events <-chan jobs.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
