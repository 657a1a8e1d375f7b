// ABOUTME: Implements a scrollable event log panel using the bubbles viewport component.
// ABOUTME: Displays orchestrator events with color-coded formatting based on event type.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/ratchet/pipeline"
)

// LogPanelModel is a scrollable log of orchestrator events.
type LogPanelModel struct {
	entries  []pipeline.Event
	max      int
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates a log panel holding at most maxEntries events.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return LogPanelModel{
		entries:  make([]pipeline.Event, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds an event, evicting the oldest entry at capacity.
func (m *LogPanelModel) Append(evt pipeline.Event) {
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, evt)
	m.syncViewport()
}

// Len returns the number of entries in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetFocused sets whether this panel accepts scroll keys.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// Update forwards scroll keys to the viewport while focused.
func (m LogPanelModel) Update(msg tea.Msg) LogPanelModel {
	if !m.focused {
		return m
	}
	m.viewport, _ = m.viewport.Update(msg)
	return m
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// border takes two lines, title one
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "EVENT LOG"
	if m.focused {
		title = "EVENT LOG (focused)"
	}

	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}

	return BorderStyle.
		Width(max(m.width-2, 0)).
		Height(max(m.height-2, 0)).
		Render(TitleStyle.Render(title) + "\n" + content)
}

// syncViewport rebuilds the viewport content and scrolls to the bottom.
func (m *LogPanelModel) syncViewport() {
	lines := make([]string, 0, len(m.entries))
	for _, evt := range m.entries {
		lines = append(lines, formatEntry(evt))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

// formatEntry formats a single event as a log line.
func formatEntry(evt pipeline.Event) string {
	parts := []string{
		LogTimestampStyle.Render(evt.Timestamp.Format("15:04:05")),
		eventStyle(evt.Type).Render(string(evt.Type)),
	}
	if evt.StepID != "" {
		parts = append(parts, fmt.Sprintf("[%d/%s]", evt.Iteration, evt.StepID))
	}
	if len(evt.Data) > 0 {
		parts = append(parts, formatData(evt.Data))
	}
	return strings.Join(parts, " ")
}

// formatData formats event data as sorted key=value pairs.
func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(data))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(pairs, " ")
}

func eventStyle(t pipeline.EventType) lipgloss.Style {
	switch t {
	case pipeline.EventRunCompleted, pipeline.EventIterationCompleted, pipeline.EventStepPassed, pipeline.EventCheckpointSaved:
		return LogSuccessStyle
	case pipeline.EventRunAborted, pipeline.EventIterationFailed, pipeline.EventStepFailed:
		return LogErrorStyle
	case pipeline.EventStepSkipped, pipeline.EventRunCancelled:
		return LogSkipStyle
	default:
		return LogEventStyle
	}
}
