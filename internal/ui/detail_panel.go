package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/proximity"
	"proximity-radar.klederson.com/internal/radar"
)

// RenderDetailPanel renders the peer detail overlay that replaces the radar area.
func RenderDetailPanel(e Entry, own proximity.Heading, width, height int, rssiHistory []float64, now time.Time) string {
	p := e.Peer
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := StylePanelTitle.Render("PEER DETAIL")
	escHint := StyleHelp.Render("[ESC]")
	titleLine := title + strings.Repeat(" ", max(0, innerW-lipgloss.Width(title)-lipgloss.Width(escHint))) + escHint

	sep := StyleRadarRing.Render(strings.Repeat("-", innerW))

	lines := []string{titleLine, sep, ""}

	labelSty := lipgloss.NewStyle().Foreground(ColorMidGreen)
	valSty := lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true)

	friend := "no"
	if e.Friend {
		friend = StyleFriendMark.Render("yes ♥")
	}

	bearing, hasBearing := relative(own, p.Heading)
	bearingStr := "unknown"
	if hasBearing {
		bearingStr = fmt.Sprintf("%.0f° %s", bearing, angleToDir(radar.DegToRad(bearing)))
	}

	fields := []struct{ label, value string }{
		{"Nickname", p.DisplayName()},
		{"ID", p.ID},
		{"Heading", headingString(p.Heading)},
		{"Bearing", bearingStr},
		{"RSSI", fmt.Sprintf("%d dBm", p.SignalStrength)},
		{"Distance", FormatDistance(p.DistanceMeters)},
		{"Friend", friend},
		{"Frame", p.RawFrame},
		{"Radio", radioString(p)},
		{"Last", formatLastSeen(now.Sub(p.LastSeen))},
	}

	for _, f := range fields {
		label := labelSty.Render(fmt.Sprintf("  %-10s", f.label))
		lines = append(lines, label+valSty.Render(f.value))
	}

	lines = append(lines, "")

	barWidth := innerW - 22
	if barWidth < 10 {
		barWidth = 10
	}
	rssi := float64(p.SignalStrength)
	bar := renderSignalBar(rssi, barWidth)
	lines = append(lines, labelSty.Render("  Signal ")+bar+valSty.Render(fmt.Sprintf(" %ddBm", p.SignalStrength)))

	lines = append(lines, "")

	if len(rssiHistory) > 0 {
		sparkW := innerW - 4
		if sparkW < 10 {
			sparkW = 10
		}
		lines = append(lines, labelSty.Render("  RSSI History:"))
		spark := renderSparkline(rssiHistory, sparkW)
		lines = append(lines, "  "+lipgloss.NewStyle().Foreground(ColorGreen).Render(spark))
		lines = append(lines, "")
	}

	if hasBearing {
		dialH := max(height-len(lines)-5, 5) // label and border
		dialW := min(innerW, dialH*3)
		if dial := RenderBearingDial(dialW, dialH, radar.DegToRad(bearing), p.DistanceMeters, rssi); dial != "" {
			prefix := strings.Repeat(" ", max(0, (innerW-dialW)/2))
			for _, cl := range strings.Split(dial, "\n") {
				lines = append(lines, prefix+cl)
			}
		}
	} else {
		lines = append(lines, StyleHelp.Render("  no bearing: one side has no compass"))
	}

	for len(lines) < height-2 {
		lines = append(lines, "")
	}
	if len(lines) > height-2 {
		lines = lines[:max(0, height-2)]
	}

	content := strings.Join(lines, "\n")
	return StylePanelActive.Width(width - 2).Height(height - 2).Render(content)
}

func relative(own, peer proximity.Heading) (float64, bool) {
	if !own.Valid || !peer.Valid {
		return 0, false
	}
	return radar.RelativeBearing(float64(own.Degrees), float64(peer.Degrees)), true
}

func headingString(h proximity.Heading) string {
	if !h.Valid {
		return "none"
	}
	return fmt.Sprintf("%03d°", h.Degrees)
}

func radioString(p proximity.DecodedPeer) string {
	if p.DeviceID == "" {
		return "-"
	}
	return p.DeviceID
}

func renderSignalBar(rssi float64, width int) string {
	// Map RSSI -100..-30 to 0..width filled bars
	ratio := (rssi + 100.0) / 70.0
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(math.Round(ratio * float64(width)))

	bar := strings.Repeat("|", filled) + strings.Repeat("-", width-filled)
	filledPart := lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(rssi))).Render(bar[:filled])
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(bar[filled:])
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}

	chars := []byte{'_', '.', '-', '~', '^'}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}

	rng := maxV - minV
	if rng < 1 {
		rng = 1
	}

	// Take last `width` values
	start := 0
	if len(values) > width {
		start = len(values) - width
	}

	var sb strings.Builder
	for i := start; i < len(values); i++ {
		idx := int((values[i] - minV) / rng * float64(len(chars)-1))
		idx = min(max(idx, 0), len(chars)-1)
		sb.WriteByte(chars[idx])
	}

	return sb.String()
}

func angleToDir(a float64) string {
	a = radar.NormalizeAngle(a)
	dirs := []string{"ahead", "ahead-right", "right", "behind-right", "behind", "behind-left", "left", "ahead-left"}
	idx := int(math.Round(a/(math.Pi/4))) % 8
	return dirs[idx]
}

func formatLastSeen(d time.Duration) string {
	if d < time.Second {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
