// Package fractal ищет фракталы торговых сессий и сетапы, когда фрактал
// сегодняшней азиатской сессии находится рядом с фракталом прошлой сессии Нью-Йорка.
package fractal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/analysis/structure"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// Названия сессий
const (
	SessionAsia  = "Asia"
	SessionSetup = "Setup"
)

// Point фрактал сессии или сетап
type Point struct {
	Time    time.Time
	Price   float64
	Type    markers.Tag
	Session string
}

// IsHigh фрактал является максимумом
func (p Point) IsHigh() bool {
	return strings.HasPrefix(string(p.Type), "F_H")
}

// Setup сетап: азиатский фрактал рядом с фракталом Нью-Йорка
type Setup struct {
	Point
	Asia Point
	NY   Point
	Diff float64
}

// Details текстовое описание сетапа
func (s Setup) Details() string {
	return fmt.Sprintf("Asian %s at %.5f (%s) near NY %s at %.5f (%s), Diff: %.5f",
		s.Asia.Type, s.Asia.Price, s.Asia.Time.Format("15:04"),
		s.NY.Type, s.NY.Price, s.NY.Time.Format("2006-01-02 15:04"),
		s.Diff)
}

// Result результат анализа фракталов
type Result struct {
	Day    time.Time
	Asia   []Point
	NY     []Point
	Setups []Setup
	// All фракталы и сетапы по возрастанию времени
	All []Point
}

// Analyzer анализатор сессионных фракталов
type Analyzer struct {
	config config.FractalConfig
}

// NewAnalyzer создает анализатор сессионных фракталов
func NewAnalyzer(cfg config.FractalConfig) *Analyzer {
	if cfg.N < 1 {
		cfg.N = 1
	}
	return &Analyzer{config: cfg}
}

// Analyze ищет фракталы и сетапы. "Сегодня" - день последней свечи.
func (a *Analyzer) Analyze(candles []models.Candle) Result {
	if len(candles) == 0 {
		return Result{}
	}
	today := models.StartOfDay(candles[len(candles)-1].OpenTime)
	return a.AnalyzeDay(candles, today)
}

// AnalyzeDay ищет фракталы азиатской сессии дня day и сессий Нью-Йорка
// предыдущих NYLookbackDays дней
func (a *Analyzer) AnalyzeDay(candles []models.Candle, day time.Time) Result {
	res := Result{Day: models.StartOfDay(day)}

	asia := SessionCandles(candles, res.Day, a.config.AsiaStartHour, a.config.AsiaEndHour)
	res.Asia = a.sessionFractals(asia, SessionAsia, markers.TagFractalHighAsia, markers.TagFractalLowAsia)

	for i := 1; i <= a.config.NYLookbackDays; i++ {
		prev := res.Day.AddDate(0, 0, -i)
		ny := SessionCandles(candles, prev, a.config.NYStartHour, a.config.NYEndHour)
		res.NY = append(res.NY, a.sessionFractals(ny, fmt.Sprintf("NY (Day -%d)", i), NYHighTag(i), NYLowTag(i))...)
	}

	res.Setups = a.findSetups(res.Asia, res.NY)

	res.All = make([]Point, 0, len(res.Asia)+len(res.NY)+len(res.Setups))
	res.All = append(res.All, res.Asia...)
	res.All = append(res.All, res.NY...)
	for _, s := range res.Setups {
		res.All = append(res.All, s.Point)
	}
	sort.SliceStable(res.All, func(i, j int) bool { return res.All[i].Time.Before(res.All[j].Time) })

	return res
}

func (a *Analyzer) sessionFractals(candles []models.Candle, session string, highTag, lowTag markers.Tag) []Point {
	highs, lows := structure.FindSwings(candles, a.config.N)
	points := make([]Point, 0, len(highs)+len(lows))
	for _, h := range highs {
		points = append(points, Point{Time: h.Time, Price: h.Price, Type: highTag, Session: session})
	}
	for _, l := range lows {
		points = append(points, Point{Time: l.Time, Price: l.Price, Type: lowTag, Session: session})
	}
	return points
}

func (a *Analyzer) findSetups(asia, ny []Point) []Setup {
	if len(asia) == 0 || len(ny) == 0 {
		return nil
	}
	threshold := a.config.ProximityPips * a.config.PipSize

	var setups []Setup
	for _, af := range asia {
		for _, nf := range ny {
			diff := math.Abs(af.Price - nf.Price)
			if diff > threshold {
				continue
			}

			tag := markers.TagSetupUnknown
			switch {
			case af.IsHigh() && nf.IsHigh():
				tag = markers.TagSetupResist
			case !af.IsHigh() && !nf.IsHigh():
				tag = markers.TagSetupSupport
			}

			s := Setup{
				Point: Point{Time: af.Time, Price: af.Price, Type: tag, Session: SessionSetup},
				Asia:  af,
				NY:    nf,
				Diff:  diff,
			}
			setups = append(setups, s)
			logger.Info("Найден сетап",
				zap.String("type", string(tag)),
				zap.Time("time", af.Time),
				zap.Float64("price", af.Price),
				zap.String("details", s.Details()))
		}
	}
	return setups
}

// SessionCandles возвращает свечи дня day с часа start до часа end включительно (UTC).
// Если end < start, сессия переходит через полночь внутри того же дня.
func SessionCandles(candles []models.Candle, day time.Time, start, end int) []models.Candle {
	day = models.StartOfDay(day)
	from := day.Add(time.Duration(start) * time.Hour)
	to := day.Add(time.Duration(end) * time.Hour)

	var out []models.Candle
	for _, c := range candles {
		t := c.OpenTime.UTC()
		if end >= start {
			if !t.Before(from) && !t.After(to) {
				out = append(out, c)
			}
			continue
		}
		if models.StartOfDay(t).Equal(day) && (!t.Before(from) || !t.After(to)) {
			out = append(out, c)
		}
	}
	return out
}

// NYHighTag тег фрактала-максимума сессии Нью-Йорка i дней назад
func NYHighTag(i int) markers.Tag {
	return markers.Tag(fmt.Sprintf("F_H_NY%d", i))
}

// NYLowTag тег фрактала-минимума сессии Нью-Йорка i дней назад
func NYLowTag(i int) markers.Tag {
	return markers.Tag(fmt.Sprintf("F_L_NY%d", i))
}
