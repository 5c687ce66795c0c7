package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"proximity-radar.klederson.com/internal/config"
	"proximity-radar.klederson.com/internal/radar"
)

// Dial markers sit just outside the ring. The dial is oriented to the local
// heading, so the top is always ahead.
const (
	markAhead  = 'A'
	markBehind = 'B'
	markLeft   = 'L'
	markRight  = 'R'
)

const (
	pointerMin = 0.3 // pointer length as a share of the ring, far away
	pointerMax = 0.9 // and right next to us
)

type dialKind uint8

const (
	kindBlank dialKind = iota
	kindRing
	kindAxis
	kindMark
	kindPointer
)

type dialCell struct {
	ch   rune
	kind dialKind
}

// dial is a character grid with an elliptical ring centered on (cx, cy).
type dial struct {
	w, h   int
	cx, cy int
	rx, ry float64
	cells  [][]dialCell
}

func newDial(w, h int) *dial {
	d := &dial{w: w, h: h, cx: w / 2, cy: h / 2}
	d.rx = float64(d.cx - 2)
	d.ry = float64(d.cy - 1)
	d.cells = make([][]dialCell, h)
	for r := range d.cells {
		d.cells[r] = make([]dialCell, w)
		for c := range d.cells[r] {
			d.cells[r][c] = dialCell{ch: ' '}
		}
	}
	return d
}

func (d *dial) set(col, row int, ch rune, kind dialKind) {
	if col < 0 || col >= d.w || row < 0 || row >= d.h {
		return
	}
	d.cells[row][col] = dialCell{ch: ch, kind: kind}
}

func (d *dial) blank(col, row int) bool {
	return col >= 0 && col < d.w && row >= 0 && row < d.h && d.cells[row][col].kind == kindBlank
}

// at maps a bearing and a share of the ring radius to a cell.
func (d *dial) at(bearing, frac float64) (int, int) {
	col := int(math.Round(float64(d.cx) + frac*d.rx*math.Sin(bearing)))
	row := int(math.Round(float64(d.cy) - frac*d.ry*math.Cos(bearing)))
	return col, row
}

func (d *dial) drawRing() {
	steps := int(8 * (d.rx + d.ry))
	for i := 0; i < steps; i++ {
		a := float64(i) * 2 * math.Pi / float64(steps)
		col, row := d.at(a, 1)
		if d.blank(col, row) {
			d.set(col, row, tangentRunes[octant(a)], kindRing)
		}
	}
	for r := d.cy - int(d.ry) + 1; r < d.cy+int(d.ry); r++ {
		if d.blank(d.cx, r) {
			d.set(d.cx, r, ':', kindAxis)
		}
	}
	for c := d.cx - int(d.rx) + 1; c < d.cx+int(d.rx); c++ {
		if d.blank(c, d.cy) {
			d.set(c, d.cy, '.', kindAxis)
		}
	}
	d.set(d.cx, d.cy-int(d.ry)-1, markAhead, kindMark)
	d.set(d.cx, d.cy+int(d.ry)+1, markBehind, kindMark)
	d.set(d.cx-int(d.rx)-1, d.cy, markLeft, kindMark)
	d.set(d.cx+int(d.rx)+1, d.cy, markRight, kindMark)
	d.set(d.cx, d.cy, '+', kindMark)
}

// drawPointer draws from the center toward bearing. Closer peers get a
// longer pointer; unknown distance counts as out of range.
func (d *dial) drawPointer(bearing, distance float64) {
	frac := 1.0
	if distance >= 0 {
		frac = math.Min(distance/config.MaxRange, 1)
	}
	length := pointerMax - (pointerMax-pointerMin)*frac

	n := max(int(math.Max(d.rx, d.ry)*length), 2)
	shaft := shaftRunes[octant(bearing)]
	tipCol, tipRow := d.cx, d.cy
	for s := 1; s <= n; s++ {
		col, row := d.at(bearing, float64(s)/float64(n)*length)
		if col == d.cx && row == d.cy {
			continue
		}
		d.set(col, row, shaft, kindPointer)
		tipCol, tipRow = col, row
	}
	d.set(tipCol, tipRow, tipRunes[octant(bearing)], kindPointer)
}

func (d *dial) render(rssi float64) string {
	styles := map[dialKind]lipgloss.Style{
		kindRing:    lipgloss.NewStyle().Foreground(ColorDimGreen),
		kindAxis:    lipgloss.NewStyle().Foreground(lipgloss.Color("#003300")),
		kindMark:    lipgloss.NewStyle().Foreground(ColorMatrixGreen).Bold(true),
		kindPointer: lipgloss.NewStyle().Foreground(lipgloss.Color(proximityColor(rssi))).Bold(true),
	}
	var sb strings.Builder
	for row, cells := range d.cells {
		for _, c := range cells {
			if c.kind == kindBlank {
				sb.WriteRune(c.ch)
				continue
			}
			sb.WriteString(styles[c.kind].Render(string(c.ch)))
		}
		if row < d.h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderBearingDial draws a dial pointing at a peer. bearing is in radians
// relative to where we face, clockwise from ahead. distance is in meters,
// negative when unknown. Returns "" when the area is too small.
func RenderBearingDial(width, height int, bearing, distance, rssi float64) string {
	if width < 9 || height < 5 {
		return ""
	}
	d := newDial(width, height)
	d.drawRing()
	d.drawPointer(bearing, distance)
	return d.render(rssi)
}

// Indexed by octant, 0 = ahead, clockwise.
var (
	tangentRunes = [8]rune{'-', '\\', '|', '/', '-', '\\', '|', '/'}
	shaftRunes   = [8]rune{'|', '/', '-', '\\', '|', '/', '-', '\\'}
	tipRunes     = [8]rune{'^', '/', '>', '\\', 'v', '/', '<', '\\'}
)

func octant(a float64) int {
	return int(math.Round(radar.NormalizeAngle(a)/(math.Pi/4))) % 8
}

// proximityColor maps RSSI to a green shade, brighter when closer.
func proximityColor(rssi float64) string {
	switch {
	case rssi > -50:
		return "#00FF41"
	case rssi > -60:
		return "#00CC33"
	case rssi > -70:
		return "#00AA22"
	case rssi > -80:
		return "#008F11"
	default:
		return "#005511"
	}
}
