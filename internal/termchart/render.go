package termchart

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

const (
	bullColor = "#26A69A"
	bearColor = "#EF5350"
	axisColor = "#999999"
)

var shapeGlyphs = map[markers.Shape]rune{
	markers.ShapeArrowUp:   '▲',
	markers.ShapeArrowDown: '▼',
	markers.ShapeCircle:    '●',
	markers.ShapeSquare:    '■',
}

// dash шаблоны стилей линий: true - символ рисуется
var dashPatterns = map[models.LineStyle][]bool{
	models.LineStyleSolid:        {true},
	models.LineStyleDotted:       {true, false},
	models.LineStyleDashed:       {true, true, true, false},
	models.LineStyleLargeDashed:  {true, true, true, true, true, false, false},
	models.LineStyleSparseDotted: {true, false, false},
}

type cell struct {
	r     rune
	color string
}

type grid struct {
	w, h  int
	cells [][]cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([][]cell, h)}
	for y := range g.cells {
		g.cells[y] = make([]cell, w)
		for x := range g.cells[y] {
			g.cells[y][x] = cell{r: ' '}
		}
	}
	return g
}

func (g *grid) set(x, y int, r rune, color string) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y][x] = cell{r: r, color: color}
}

func (g *grid) text(x, y int, s, color string) {
	for i, r := range []rune(s) {
		g.set(x+i, y, r, color)
	}
}

// String склеивает ячейки, объединяя соседние ячейки одного цвета в один стиль
func (g *grid) String() string {
	var b strings.Builder
	for y, row := range g.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run []rune
		color := ""
		flush := func() {
			if len(run) == 0 {
				return
			}
			if color == "" {
				b.WriteString(string(run))
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(run)))
			}
			run = run[:0]
		}
		for _, c := range row {
			if c.color != color {
				flush()
				color = c.color
			}
			run = append(run, c.r)
		}
		flush()
	}
	return b.String()
}

// Render возвращает отрисованный график
func (c *Chart) Render() string {
	g := newGrid(c.width, c.height)
	lo, hi, ok := c.priceRange()
	if !ok {
		g.text(0, c.plotHeight()/2, "Нет данных", axisColor)
		return g.String()
	}

	c.drawCandles(g, lo, hi)
	for _, id := range c.order {
		c.drawLine(g, c.lines[id], lo, hi)
	}
	c.drawMarkers(g, lo, hi)
	c.drawAxes(g, lo, hi)
	return g.String()
}

func (c *Chart) drawCandles(g *grid, lo, hi float64) {
	from, to := c.Visible()
	for i := from; i < to; i++ {
		cd := c.candles[i]
		x := i - c.offset
		color := bullColor
		if cd.Close < cd.Open {
			color = bearColor
		}

		top := roundRow(c.row(cd.High, lo, hi))
		bottom := roundRow(c.row(cd.Low, lo, hi))
		bodyTop := roundRow(c.row(math.Max(cd.Open, cd.Close), lo, hi))
		bodyBottom := roundRow(c.row(math.Min(cd.Open, cd.Close), lo, hi))
		for y := top; y <= bottom; y++ {
			r := '│'
			if y >= bodyTop && y <= bodyBottom {
				r = '┃'
			}
			g.set(x, y, r, color)
		}
	}
}

func (c *Chart) drawLine(g *grid, l line, lo, hi float64) {
	if len(l.points) < 2 {
		return
	}
	pattern := dashPatterns[l.opts.Style]
	if pattern == nil {
		pattern = dashPatterns[models.LineStyleSolid]
	}
	color := l.opts.Color

	for seg := 0; seg+1 < len(l.points); seg++ {
		p0, p1 := l.points[seg], l.points[seg+1]
		x0, ok0 := c.column(p0.Time)
		x1, ok1 := c.column(p1.Time)
		if !ok0 || !ok1 {
			continue
		}
		y0, y1 := c.row(p0.Price, lo, hi), c.row(p1.Price, lo, hi)

		// вертикальная линия занимает всю высоту области построения
		if roundCol(x0) == roundCol(x1) && p0.Time.Equal(p1.Time) {
			x := roundCol(x0)
			if x < 0 || x >= c.plotWidth() {
				continue
			}
			for y := 0; y < c.plotHeight(); y++ {
				if pattern[y%len(pattern)] && g.cells[y][x].r == ' ' {
					g.set(x, y, '┆', color)
				}
			}
			continue
		}

		glyph := slopeGlyph(x0, y0, x1, y1)
		// растеризуем только часть отрезка внутри области построения
		var visible bool
		x0, y0, x1, y1, visible = clipSegment(x0, y0, x1, y1,
			-0.5, float64(c.plotWidth())-0.5, -0.5, float64(c.plotHeight())-0.5)
		if !visible {
			continue
		}
		steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
		if steps == 0 {
			steps = 1
		}
		for s := 0; s <= steps; s++ {
			if !pattern[s%len(pattern)] {
				continue
			}
			f := float64(s) / float64(steps)
			x := roundCol(x0 + (x1-x0)*f)
			y := roundRow(y0 + (y1-y0)*f)
			if x < 0 || x >= c.plotWidth() || y < 0 || y >= c.plotHeight() {
				continue
			}
			g.set(x, y, glyph, color)
		}
	}
}

func (c *Chart) drawMarkers(g *grid, lo, hi float64) {
	index := make(map[int64]int, len(c.candles))
	for i, cd := range c.candles {
		index[cd.OpenTime.Unix()] = i
	}
	for _, m := range c.marks {
		i, ok := index[m.Time.Unix()]
		if !ok {
			continue
		}
		x := i - c.offset
		if x < 0 || x >= c.plotWidth() {
			continue
		}
		cd := c.candles[i]
		var y int
		if m.Position == markers.AboveBar {
			y = roundRow(c.row(cd.High, lo, hi)) - 1
		} else {
			y = roundRow(c.row(cd.Low, lo, hi)) + 1
		}
		y = max(0, min(y, c.plotHeight()-1))
		glyph, ok := shapeGlyphs[m.Shape]
		if !ok {
			glyph = '●'
		}
		g.set(x, y, glyph, m.Color)
	}
}

func (c *Chart) drawAxes(g *grid, lo, hi float64) {
	axisX := c.plotWidth()
	rows := c.plotHeight()
	prec := pricePrecision(hi - lo)
	for y := 0; y < rows; y++ {
		g.set(axisX, y, '│', axisColor)
		if y%4 == 0 || y == rows-1 {
			price := hi - float64(y)*(hi-lo)/float64(rows-1)
			label := strconv.FormatFloat(price, 'f', prec, 64)
			if len(label) > axisWidth-2 {
				label = label[:axisWidth-2]
			}
			g.text(axisX+2, y, label, axisColor)
		}
	}

	from, to := c.Visible()
	layout := "01-02 15:04"
	for i := from; i < to; i += 20 {
		x := i - c.offset
		if x+len(layout) > axisX {
			break
		}
		g.text(x, rows, c.candles[i].OpenTime.UTC().Format(layout), axisColor)
	}
}

// pricePrecision количество знаков после запятой для шага шкалы
func pricePrecision(span float64) int {
	if span <= 0 {
		return 2
	}
	p := int(math.Ceil(-math.Log10(span))) + 2
	return max(0, min(p, 6))
}

func slopeGlyph(x0, y0, x1, y1 float64) rune {
	dx, dy := x1-x0, y1-y0
	if dx == 0 {
		return '│'
	}
	k := dy / dx
	switch {
	case math.Abs(k) < 0.5:
		return '─'
	case math.Abs(k) > 2:
		return '│'
	case k > 0:
		return '╲'
	default:
		return '╱'
	}
}

// clipSegment обрезает отрезок прямоугольником [xmin, xmax] x [ymin, ymax]
// (Лианг-Барски). false, если отрезок целиком снаружи.
func clipSegment(x0, y0, x1, y1, xmin, xmax, ymin, ymax float64) (float64, float64, float64, float64, bool) {
	if math.IsNaN(x0+y0+x1+y1) || math.IsInf(x0+y0+x1+y1, 0) {
		return 0, 0, 0, 0, false
	}
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x0 - xmin, xmax - x0, y0 - ymin, ymax - y0}
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q[i] / p[i]
		if p[i] < 0 {
			t0 = max(t0, r)
		} else {
			t1 = min(t1, r)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

func roundCol(x float64) int {
	return int(math.Round(x))
}

func roundRow(y float64) int {
	return int(math.Round(y))
}
