package radar

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/config"
	"proximity-radar.klederson.com/internal/proximity"
)

var (
	colorBright  = lipgloss.Color("#00FF41")
	colorMid     = lipgloss.Color("#008F11")
	colorDim     = lipgloss.Color("#004A0A")
	colorPeer    = lipgloss.Color("#00FFAA")
	colorFriend  = lipgloss.Color("#FFD700")
	colorLabelLo = lipgloss.Color("#008F11")

	styleCenter    = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleRing      = lipgloss.NewStyle().Foreground(colorMid)
	styleDot       = lipgloss.NewStyle().Foreground(colorDim)
	stylePeer      = lipgloss.NewStyle().Foreground(colorPeer).Bold(true)
	styleFriend    = lipgloss.NewStyle().Foreground(colorFriend).Bold(true)
	styleHot       = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleLabelPeer = lipgloss.NewStyle().Foreground(colorPeer)
	styleLabelFrnd = lipgloss.NewStyle().Foreground(colorFriend)
	styleLabelDim  = lipgloss.NewStyle().Foreground(colorLabelLo)
)

const maxLabelRunes = 8

// Blip is one peer placed on the scope.
type Blip struct {
	ID       string
	Label    string
	Angle    float64 // radians, 0 is the top of the scope
	Distance float64 // meters, negative when unknown
	Bearing  bool    // false when either side has no heading; never drawn
	Friend   bool
	Stale    bool
}

// BlipFor places a peer relative to the local heading. A peer without a
// heading, or a local device without a compass, has no bearing and stays off
// the scope.
func BlipFor(p proximity.DecodedPeer, own proximity.Heading, friend bool, now time.Time, staleAfter time.Duration) Blip {
	b := Blip{
		ID:       p.ID,
		Label:    p.DisplayName(),
		Distance: p.DistanceMeters,
		Friend:   friend,
		Stale:    staleAfter > 0 && now.Sub(p.LastSeen) > staleAfter,
	}
	if p.Heading.Valid && own.Valid {
		b.Angle = DegToRad(RelativeBearing(float64(own.Degrees), float64(p.Heading.Degrees)))
		b.Bearing = true
	}
	return b
}

type blipPos struct {
	col, row int
	blip     *Blip
	label    string
	labelCol int
	labelRow int
}

// Render produces the complete radar display as a styled string.
func Render(width, height int, blips []Blip, sweep *Sweep) string {
	if width < 10 || height < 5 {
		return ""
	}

	centerX := width / 2
	centerY := height / 2
	radius := float64(min(centerX-1, int(float64(centerY-1)/config.AspectRatio)))
	if radius < 3 {
		radius = 3
	}

	ringRadii := make([]float64, config.RingCount)
	for i := range ringRadii {
		ringRadii[i] = radius * float64(i+1) / float64(config.RingCount)
	}

	placeable := make([]Blip, 0, len(blips))
	for _, b := range blips {
		if b.Bearing {
			placeable = append(placeable, b)
		}
	}
	bps := placeBlips(placeable, centerX, centerY, radius, width)

	type labelCell struct {
		idx int
		ch  string
	}
	labelMap := make(map[int]labelCell)
	for i, bp := range bps {
		col := bp.labelCol
		for _, r := range bp.label {
			labelMap[bp.labelRow*width+col] = labelCell{idx: i, ch: string(r)}
			col++
		}
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if lc, ok := labelMap[row*width+col]; ok {
				sb.WriteString(styleLabel(bps[lc.idx].blip, sweep, CellAngle(col, row, centerX, centerY), lc.ch))
				continue
			}
			sb.WriteString(renderCell(col, row, centerX, centerY, radius, ringRadii, sweep, bps))
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

type segment struct{ start, end int }

func collides(occupied map[int][]segment, row, start, end int) bool {
	for _, seg := range occupied[row] {
		if start < seg.end && end > seg.start {
			return true
		}
	}
	return false
}

// placeBlips computes cell positions and drops labels that would overlap.
func placeBlips(blips []Blip, centerX, centerY int, radius float64, width int) []blipPos {
	bps := make([]blipPos, 0, len(blips))
	occupied := make(map[int][]segment)

	for i := range blips {
		b := &blips[i]
		r := MetersToRadius(b.Distance, config.MaxRange, radius)
		dc := centerX + int(math.Round(r*math.Sin(b.Angle)))
		dr := centerY - int(math.Round(r*math.Cos(b.Angle)*config.AspectRatio))

		label := callsign(b.Label)
		n := utf8.RuneCountInString(label)
		lc := dc + 2
		if lc+n >= width {
			lc = dc - n - 1
		}
		if lc < 0 {
			lc = 0
		}

		lr := dr
		placed := false
		for _, tryRow := range []int{dr, dr + 1, dr - 1} {
			if !collides(occupied, tryRow, lc, lc+n) {
				lr, placed = tryRow, true
				break
			}
		}
		if !placed {
			label = ""
		}

		bps = append(bps, blipPos{col: dc, row: dr, blip: b, label: label, labelCol: lc, labelRow: lr})
		occupied[dr] = append(occupied[dr], segment{dc, dc + 1})
		if label != "" {
			occupied[lr] = append(occupied[lr], segment{lc, lc + n})
		}
	}
	return bps
}

func callsign(name string) string {
	if utf8.RuneCountInString(name) <= maxLabelRunes {
		return name
	}
	return string([]rune(name)[:maxLabelRunes])
}

func styleLabel(b *Blip, sweep *Sweep, cellAngle float64, s string) string {
	if b.Stale {
		return styleLabelDim.Render(s)
	}
	if sweep.Intensity(cellAngle) > 0.5 {
		return styleHot.Render(s)
	}
	if b.Friend {
		return styleLabelFrnd.Render(s)
	}
	return styleLabelPeer.Render(s)
}

func renderCell(col, row, centerX, centerY int, radius float64, ringRadii []float64, sweep *Sweep, bps []blipPos) string {
	dist := CellDistance(col, row, centerX, centerY)
	angle := CellAngle(col, row, centerX, centerY)

	for _, bp := range bps {
		if col == bp.col && row == bp.row {
			return renderBlip(bp.blip, sweep, angle)
		}
	}

	if dist > radius+0.5 {
		return " "
	}
	if col == centerX && row == centerY {
		return styleCenter.Render("+")
	}
	if col == centerX {
		return renderSweepChar('|', sweep, angle)
	}
	if row == centerY {
		return renderSweepChar('-', sweep, angle)
	}
	for _, ringR := range ringRadii {
		if math.Abs(dist-ringR) < 0.8 {
			return renderSweepChar(RingChar(angle), sweep, angle)
		}
	}
	if dist <= radius {
		return renderSweepChar('.', sweep, angle)
	}
	return " "
}

func renderBlip(b *Blip, sweep *Sweep, cellAngle float64) string {
	sym := "*"
	if b.Friend {
		sym = "♥"
	}
	switch {
	case b.Stale:
		return styleDot.Render(sym)
	case sweep.Intensity(cellAngle) > 0.5:
		return styleHot.Render(sym)
	case b.Friend:
		return styleFriend.Render(sym)
	default:
		return stylePeer.Render(sym)
	}
}

func renderSweepChar(ch rune, sweep *Sweep, angle float64) string {
	color := sweepColor(sweep.Intensity(angle))
	if color == "" {
		if ch == '.' {
			return styleDot.Render(".")
		}
		return styleRing.Render(string(ch))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(ch))
}

func sweepColor(intensity float64) string {
	switch {
	case intensity <= 0:
		return ""
	case intensity > 0.8:
		return "#00FF41"
	case intensity > 0.5:
		return "#00CC33"
	case intensity > 0.3:
		return "#00AA22"
	default:
		return "#005511"
	}
}

// RenderLegend produces the radar legend line.
func RenderLegend(width int) string {
	legend := "   " +
		stylePeer.Render("* bearing") + "  " +
		styleFriend.Render("♥ friend") + "  " +
		styleLabelDim.Render("no heading: list only")

	pad := (width - lipgloss.Width(legend)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + legend
}
