package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/proximity"
)

// Entry is one row of the peer list.
type Entry struct {
	Peer   proximity.DecodedPeer
	Friend bool
	Stale  bool
}

// Cursor row style: black text on bright green = unmissable highlight
var cursorRowSty = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#000000")).
	Background(ColorMatrixGreen).
	Bold(true)

const linesPerEntry = 4 // 3 content + 1 blank

// RenderPeerList renders the scrollable peer list. The header stays fixed at
// the top; only the entries scroll so the cursor is always visible.
func RenderPeerList(entries []Entry, width, height, cursor int, friendsOnly bool) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("PEERS [%d]", len(entries)))
	separator := StyleRadarRing.Render(strings.Repeat("-", innerW))
	headerLines := []string{title, separator, renderViewBar(friendsOnly)}

	innerH := height - 2
	if innerH < len(headerLines)+1 {
		innerH = len(headerLines) + 1
	}
	space := innerH - len(headerLines)

	var lines []string
	if len(entries) == 0 {
		lines = append(lines, "", StyleHelp.Render(" No peers..."), StyleHelp.Render(" Waiting for scan"))
	} else {
		maxVisible := space / linesPerEntry
		if maxVisible < 1 {
			maxVisible = 1
		}
		start := 0
		if cursor >= maxVisible {
			start = cursor - maxVisible + 1
		}
		for i := start; i < len(entries) && len(lines) < space; i++ {
			lines = append(lines, renderEntry(entries[i], innerW, i == cursor)...)
		}
	}

	if len(lines) > space {
		lines = lines[:space]
	}
	for len(lines) < space {
		lines = append(lines, "")
	}

	content := strings.Join(append(headerLines, lines...), "\n")
	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(content)

	// lipgloss Height() only sets a minimum; it won't truncate overflow.
	return clampLines(rendered, height)
}

func renderEntry(e Entry, maxW int, isCursor bool) []string {
	p := e.Peer
	symbol, symSty := "*", StylePeerBearing
	if !p.Heading.Valid {
		symbol, symSty = "o", StylePeerNoHeading
	}
	friend := " "
	if e.Friend {
		friend = "♥"
	}

	name := truncRunes(p.DisplayName(), maxW-10)
	heading := "---"
	if p.Heading.Valid {
		heading = fmt.Sprintf("%03d", p.Heading.Degrees)
	}

	raw1 := fmt.Sprintf("%s %s %s %s", cursorMark(isCursor), friend, symbol, name)
	raw2 := fmt.Sprintf("       id %s  hdg %s", p.ID, heading)
	raw3 := fmt.Sprintf("       %ddBm  %s", p.SignalStrength, FormatDistance(p.DistanceMeters))

	if isCursor {
		return []string{
			cursorRowSty.Render(padRunes(raw1, maxW)),
			cursorRowSty.Render(padRunes(raw2, maxW)),
			cursorRowSty.Render(padRunes(raw3, maxW)),
			"",
		}
	}
	if e.Stale {
		return []string{
			StyleStale.Render(truncRunes(raw1, maxW)),
			StyleStale.Render(truncRunes(raw2, maxW)),
			StyleStale.Render(truncRunes(raw3, maxW)),
			"",
		}
	}

	line1 := fmt.Sprintf("   %s %s %s", StyleFriendMark.Render(friend), symSty.Render(symbol), StylePeerName.Render(name))
	line2 := StylePeerID.Render(truncRunes(raw2, maxW))
	line3 := StylePeerSignal.Render(truncRunes(raw3, maxW))
	return []string{line1, line2, line3, ""}
}

func cursorMark(on bool) string {
	if on {
		return ">>"
	}
	return "  "
}

func renderViewBar(friendsOnly bool) string {
	toggle := func(on bool, label string) string {
		if on {
			return StyleFilterActive.Render("[" + label + "]")
		}
		return StyleFilterInactive.Render("[" + label + "]")
	}
	return " " + toggle(!friendsOnly, "all") + " " + toggle(friendsOnly, "friends")
}

// FormatDistance renders an estimate, "?" when the signal was unusable.
func FormatDistance(m float64) string {
	if m < 0 {
		return "~?m"
	}
	return fmt.Sprintf("~%.1fm", m)
}

// truncRunes cuts s to at most w runes.
func truncRunes(s string, w int) string {
	if w < 1 {
		return ""
	}
	r := []rune(s)
	if len(r) > w {
		return string(r[:w])
	}
	return s
}

// padRunes pads or truncates s to exactly w runes.
func padRunes(s string, w int) string {
	s = truncRunes(s, w)
	if n := len([]rune(s)); n < w {
		s += strings.Repeat(" ", w-n)
	}
	return s
}

func clampLines(s string, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
