// Package termchart реализует поверхность графика в терминале:
// свечи по одной на колонку, маркеры и линии поверх символьной сетки.
package termchart

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skalibog/structchart/internal/chart"
	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

// ErrUnknownOverlay линия с таким идентификатором не найдена
var ErrUnknownOverlay = errors.New("неизвестная линия")

// ErrTooSmall область графика слишком мала для отрисовки
var ErrTooSmall = errors.New("область графика слишком мала")

const (
	axisWidth = 11 // подписи цен справа
	minWidth  = axisWidth + 4
	minHeight = 4
)

type line struct {
	points []chart.Point
	opts   chart.LineOptions
}

// Chart поверхность графика на символьной сетке.
// Не потокобезопасна: используется только из цикла событий UI.
type Chart struct {
	width  int
	height int

	series  *series
	candles []models.Candle
	marks   []markers.Marker

	lines map[chart.OverlayID]line
	order []chart.OverlayID

	offset int
	follow bool
}

type series struct {
	c *Chart
}

func (s *series) SetData(candles []models.Candle) {
	s.c.candles = append(s.c.candles[:0:0], candles...)
	s.c.clampOffset()
}

func (s *series) SetMarkers(list []markers.Marker) {
	s.c.marks = append(s.c.marks[:0:0], list...)
}

// New создает поверхность размером width x height
func New(width, height int) (*Chart, error) {
	if width < minWidth || height < minHeight {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooSmall, width, height)
	}
	return &Chart{
		width:  width,
		height: height,
		lines:  make(map[chart.OverlayID]line),
		follow: true,
	}, nil
}

// AddCandleSeries возвращает ценовую серию поверхности (одна на поверхность)
func (c *Chart) AddCandleSeries() (chart.CandleSeries, error) {
	if c.series == nil {
		c.series = &series{c: c}
	}
	return c.series, nil
}

// AddLine добавляет линию и возвращает ее идентификатор
func (c *Chart) AddLine(points []chart.Point, opts chart.LineOptions) (chart.OverlayID, error) {
	if len(points) < 2 {
		return "", fmt.Errorf("для линии нужно две точки, получено %d", len(points))
	}
	id := chart.OverlayID(uuid.NewString())
	c.lines[id] = line{points: append([]chart.Point(nil), points...), opts: opts}
	c.order = append(c.order, id)
	return id, nil
}

// RemoveLine удаляет линию
func (c *Chart) RemoveLine(id chart.OverlayID) error {
	if _, ok := c.lines[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOverlay, id)
	}
	delete(c.lines, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// CoordinateToTime время свечи в колонке x области построения
func (c *Chart) CoordinateToTime(x int) (time.Time, bool) {
	if x < 0 || x >= c.plotWidth() {
		return time.Time{}, false
	}
	idx := c.offset + x
	if idx >= len(c.candles) {
		return time.Time{}, false
	}
	return c.candles[idx].OpenTime, true
}

// CoordinateToPrice цена строки y области построения
func (c *Chart) CoordinateToPrice(y int) (float64, bool) {
	rows := c.plotHeight()
	if y < 0 || y >= rows || rows < 2 {
		return 0, false
	}
	lo, hi, ok := c.priceRange()
	if !ok {
		return 0, false
	}
	return hi - float64(y)*(hi-lo)/float64(rows-1), true
}

// FitContent показывает последние свечи, которые помещаются по ширине
func (c *Chart) FitContent() {
	c.follow = true
	c.offset = c.maxOffset()
}

// Pan сдвигает видимую область на delta свечей (отрицательное значение - в прошлое)
func (c *Chart) Pan(delta int) {
	c.offset += delta
	c.clampOffset()
	c.follow = c.offset == c.maxOffset()
}

// Resize меняет размер поверхности
func (c *Chart) Resize(width, height int) {
	if width < minWidth {
		width = minWidth
	}
	if height < minHeight {
		height = minHeight
	}
	c.width, c.height = width, height
	if c.follow {
		c.offset = c.maxOffset()
	}
	c.clampOffset()
}

// Size текущий размер поверхности
func (c *Chart) Size() (width, height int) {
	return c.width, c.height
}

// Visible индексы первой и следующей за последней видимой свечи
func (c *Chart) Visible() (from, to int) {
	to = c.offset + c.plotWidth()
	if to > len(c.candles) {
		to = len(c.candles)
	}
	return c.offset, to
}

// LineCount количество линий на поверхности
func (c *Chart) LineCount() int {
	return len(c.lines)
}

// MarkerCount количество маркеров на поверхности
func (c *Chart) MarkerCount() int {
	return len(c.marks)
}

// CandleCount количество свечей серии
func (c *Chart) CandleCount() int {
	return len(c.candles)
}

func (c *Chart) plotWidth() int {
	return c.width - axisWidth
}

// последняя строка отдана под шкалу времени
func (c *Chart) plotHeight() int {
	return c.height - 1
}

func (c *Chart) maxOffset() int {
	if n := len(c.candles) - c.plotWidth(); n > 0 {
		return n
	}
	return 0
}

func (c *Chart) clampOffset() {
	if c.offset > c.maxOffset() {
		c.offset = c.maxOffset()
	}
	if c.offset < 0 {
		c.offset = 0
	}
}

func isVertical(points []chart.Point) bool {
	if len(points) < 2 {
		return false
	}
	for _, p := range points[1:] {
		if !p.Time.Equal(points[0].Time) {
			return false
		}
	}
	return true
}

// priceRange диапазон цен видимых свечей и точек наклонных линий в видимом окне времени
func (c *Chart) priceRange() (lo, hi float64, ok bool) {
	from, to := c.Visible()
	if from >= to {
		return 0, 0, false
	}
	lo, hi = c.candles[from].Low, c.candles[from].High
	for _, cd := range c.candles[from:to] {
		lo = min(lo, cd.Low)
		hi = max(hi, cd.High)
	}

	first, last := c.candles[from].OpenTime, c.candles[to-1].OpenTime
	for _, id := range c.order {
		// вертикальная линия рисуется на всю высоту и шкалу не растягивает
		if isVertical(c.lines[id].points) {
			continue
		}
		for _, p := range c.lines[id].points {
			if p.Time.Before(first) || p.Time.After(last) {
				continue
			}
			lo = min(lo, p.Price)
			hi = max(hi, p.Price)
		}
	}

	if hi == lo {
		pad := hi * 0.001
		if pad == 0 {
			pad = 1
		}
		lo, hi = lo-pad, hi+pad
	}
	return lo, hi, true
}

// column дробный номер колонки для момента t: между свечами интерполируется,
// за пределами ряда экстраполируется по шагу крайних свечей.
func (c *Chart) column(t time.Time) (float64, bool) {
	n := len(c.candles)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		if t.Equal(c.candles[0].OpenTime) {
			return float64(-c.offset), true
		}
		return 0, false
	}

	i := sort.Search(n, func(i int) bool { return !c.candles[i].OpenTime.Before(t) })
	var lo, hi int
	switch {
	case i == 0:
		lo, hi = 0, 1
	case i == n:
		lo, hi = n-2, n-1
	default:
		lo, hi = i-1, i
	}
	t0, t1 := c.candles[lo].OpenTime, c.candles[hi].OpenTime
	step := t1.Sub(t0)
	if step <= 0 {
		return float64(lo - c.offset), true
	}
	idx := float64(lo) + float64(t.Sub(t0))/float64(step)
	return idx - float64(c.offset), true
}

// row дробный номер строки для цены
func (c *Chart) row(price, lo, hi float64) float64 {
	rows := c.plotHeight()
	return (hi - price) / (hi - lo) * float64(rows-1)
}
