// Package structure определяет свинги и структуру рынка (HH, HL, LH, LL).
package structure

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

// SwingKind тип свинга
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

// Swing поворотная точка
type Swing struct {
	Time  time.Time
	Price float64
	Kind  SwingKind
}

// Point точка структуры рынка
type Point struct {
	Time  time.Time
	Price float64
	Type  markers.Tag
}

// Result результат анализа структуры
type Result struct {
	Highs   []Swing
	Lows    []Swing
	Points  []Point
	Context string
}

// Analyzer анализатор структуры рынка
type Analyzer struct {
	n int
}

// NewAnalyzer создает анализатор со свингами по n свечей с каждой стороны
func NewAnalyzer(n int) *Analyzer {
	if n < 1 {
		n = 1
	}
	return &Analyzer{n: n}
}

// Analyze находит свинги, точки структуры и общий контекст
func (a *Analyzer) Analyze(candles []models.Candle) Result {
	highs, lows := FindSwings(candles, a.n)
	points := ClassifyStructure(highs, lows)
	return Result{
		Highs:   highs,
		Lows:    lows,
		Points:  points,
		Context: MarketContext(points),
	}
}

// FindSwings находит свинги: максимум строго выше n соседних максимумов
// с каждой стороны, минимум строго ниже n соседних минимумов.
func FindSwings(candles []models.Candle, n int) (highs, lows []Swing) {
	if n < 1 || len(candles) < 2*n+1 {
		return nil, nil
	}

	for i := n; i < len(candles)-n; i++ {
		high, low := candles[i].High, candles[i].Low
		isHigh, isLow := true, true
		for j := 1; j <= n; j++ {
			if high <= candles[i-j].High || high <= candles[i+j].High {
				isHigh = false
			}
			if low >= candles[i-j].Low || low >= candles[i+j].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, Swing{Time: candles[i].OpenTime, Price: high, Kind: SwingHigh})
		}
		if isLow {
			lows = append(lows, Swing{Time: candles[i].OpenTime, Price: low, Kind: SwingLow})
		}
	}
	return highs, lows
}

const priceEpsilon = 1e-9

// ClassifyStructure размечает свинги относительно предыдущего свинга того же типа.
// Первый максимум - H, первый минимум - L, равные цены тоже H/L.
func ClassifyStructure(highs, lows []Swing) []Point {
	all := make([]Swing, 0, len(highs)+len(lows))
	all = append(all, highs...)
	all = append(all, lows...)
	if len(all) == 0 {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	var lastHigh, lastLow *Swing
	points := make([]Point, 0, len(all))
	for i := range all {
		s := all[i]
		var tag markers.Tag
		switch s.Kind {
		case SwingHigh:
			switch {
			case lastHigh == nil:
				tag = markers.TagHigh
			case s.Price > lastHigh.Price:
				tag = markers.TagHigherHigh
			case s.Price < lastHigh.Price:
				tag = markers.TagLowerHigh
			default:
				tag = markers.TagHigh
			}
			lastHigh = &all[i]
		case SwingLow:
			switch {
			case lastLow == nil:
				tag = markers.TagLow
			case s.Price < lastLow.Price:
				tag = markers.TagLowerLow
			case s.Price > lastLow.Price:
				tag = markers.TagHigherLow
			default:
				tag = markers.TagLow
			}
			lastLow = &all[i]
		}
		points = append(points, Point{Time: s.Time, Price: s.Price, Type: tag})
	}

	return dedup(points)
}

// dedup убирает повторные H/L на той же цене и заменяет H/L уточненной
// точкой на той же свече
func dedup(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}
	out := []Point{points[0]}
	for _, cur := range points[1:] {
		prev := &out[len(out)-1]

		basic := (cur.Type == markers.TagHigh || cur.Type == markers.TagLow) && cur.Type == prev.Type
		if basic && math.Abs(cur.Price-prev.Price) < priceEpsilon {
			continue
		}
		if prev.Type == markers.TagHigh && (cur.Type == markers.TagHigherHigh || cur.Type == markers.TagLowerHigh) && cur.Time.Equal(prev.Time) {
			*prev = cur
			continue
		}
		if prev.Type == markers.TagLow && (cur.Type == markers.TagLowerLow || cur.Type == markers.TagHigherLow) && cur.Time.Equal(prev.Time) {
			*prev = cur
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Контексты рынка
const (
	ContextLong          = "LONG"
	ContextShort         = "SHORT"
	ContextNeutral       = "NEUTRAL/RANGING"
	ContextNotEnoughData = "NEUTRAL/RANGING (мало данных)"
	ContextNoStructure   = "NEUTRAL/RANGING (нет явной структуры HH/HL/LH/LL)"
	ContextMaybeUp       = "NEUTRAL/RANGING (возможно начало восходящего движения)"
	ContextMaybeDown     = "NEUTRAL/RANGING (возможно начало нисходящего движения)"
	ContextLongAfterHH   = "LONG (HL после HH)"
	ContextHLForming     = "NEUTRAL/RANGING (HL формируется, ожидание HH)"
	ContextShortAfterLL  = "SHORT (LH после LL)"
	ContextLHForming     = "NEUTRAL/RANGING (LH формируется, ожидание LL)"
	ContextImpulseUp     = "LONG (импульс вверх, ожидание HL)"
	ContextImpulseDown   = "SHORT (импульс вниз, ожидание LH)"
)

// MarketContext определяет общий контекст по последним точкам структуры
func MarketContext(points []Point) string {
	if len(points) < 2 {
		return ContextNotEnoughData
	}

	var trend []Point
	for _, p := range points {
		switch p.Type {
		case markers.TagHigherHigh, markers.TagHigherLow, markers.TagLowerHigh, markers.TagLowerLow:
			trend = append(trend, p)
		}
	}

	if len(trend) < 2 {
		lastH, okH := lastOfType(points, markers.TagHigh)
		lastL, okL := lastOfType(points, markers.TagLow)
		if okH && okL {
			if lastH.Time.After(lastL.Time) && lastH.Price > lastL.Price {
				return ContextMaybeUp
			}
			if lastL.Time.After(lastH.Time) && lastL.Price < lastH.Price {
				return ContextMaybeDown
			}
		}
		return ContextNoStructure
	}

	last, prev := trend[len(trend)-1].Type, trend[len(trend)-2].Type
	switch {
	case last == markers.TagHigherHigh && prev == markers.TagHigherLow:
		return ContextLong
	case last == markers.TagLowerLow && prev == markers.TagLowerHigh:
		return ContextShort
	case last == markers.TagHigherLow && prev == markers.TagHigherHigh:
		return ContextLongAfterHH
	case last == markers.TagHigherLow:
		return ContextHLForming
	case last == markers.TagLowerHigh && prev == markers.TagLowerLow:
		return ContextShortAfterLL
	case last == markers.TagLowerHigh:
		return ContextLHForming
	case last == markers.TagHigherHigh:
		return ContextImpulseUp
	case last == markers.TagLowerLow:
		return ContextImpulseDown
	}
	return ContextNeutral
}

func lastOfType(points []Point, tag markers.Tag) (Point, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Type == tag {
			return points[i], true
		}
	}
	return Point{}, false
}

// IsLong контекст указывает на восходящую структуру
func IsLong(context string) bool {
	return strings.HasPrefix(context, ContextLong)
}

// IsShort контекст указывает на нисходящую структуру
func IsShort(context string) bool {
	return strings.HasPrefix(context, ContextShort)
}
