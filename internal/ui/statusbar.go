package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/proximity"
)

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, st proximity.Status, own proximity.Heading, peers, friends int, sweepDeg, maxRange float64) string {
	content := renderState(st)

	heading := "--"
	if own.Valid {
		heading = fmt.Sprintf("%03d", own.Degrees)
	}
	info := fmt.Sprintf(" Peers: %d  Friends: %d  Heading: %s  Sweep: %ddeg  Range: 0-%.0fm",
		peers, friends, heading, int(sweepDeg), maxRange)
	if st.HeadingUnsupported {
		info += "  (no compass)"
	}
	content += StyleStatusBar.Foreground(ColorGreen).Render(info)

	if st.LastError != "" {
		content += "  " + StyleStatusFailed.Render(st.LastError)
	}

	gap := width - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}
	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}

func renderState(st proximity.Status) string {
	label := "[" + strings.ToUpper(st.State.String()) + "]"
	switch st.State {
	case proximity.StateFailed:
		return StyleStatusFailed.Render(label)
	case proximity.StateStartingBroadcast:
		if st.Attempt > 1 {
			label = fmt.Sprintf("[BROADCAST RETRY %d]", st.Attempt)
		}
		return StyleStatusPaused.Render(label)
	case proximity.StateAdvertising, proximity.StateStoppingBroadcast:
		return StyleStatusPaused.Render(label)
	default:
		return StyleStatusScanning.Render(label)
	}
}
