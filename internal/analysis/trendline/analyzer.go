package trendline

import (
	"time"

	"github.com/markcheno/go-talib"

	"github.com/skalibog/structchart/internal/analysis/structure"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/models"
)

// Цвета линий
const (
	ColorResistance = "#EF5350"
	ColorSupport    = "#26A69A"
	ColorChannel    = "#787B86"
)

// Result линии, построенные анализатором
type Result struct {
	Resistance *models.TrendLine
	Support    *models.TrendLine
	Channel    []models.TrendLine // средняя линия, верхняя и нижняя границы
}

// Lines возвращает все построенные линии
func (r Result) Lines() []models.TrendLine {
	lines := make([]models.TrendLine, 0, 2+len(r.Channel))
	if r.Resistance != nil {
		lines = append(lines, *r.Resistance)
	}
	if r.Support != nil {
		lines = append(lines, *r.Support)
	}
	return append(lines, r.Channel...)
}

// Analyzer строит трендовые линии и канал линейной регрессии
type Analyzer struct {
	config config.TrendlineConfig
}

// NewAnalyzer создает анализатор трендовых линий
func NewAnalyzer(cfg config.TrendlineConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze строит линию сопротивления по двум последним максимумам, линию поддержки
// по двум последним минимумам и канал регрессии по ценам закрытия
func (a *Analyzer) Analyze(candles []models.Candle, highs, lows []structure.Swing) Result {
	var res Result
	if len(candles) == 0 {
		return res
	}
	end := candles[len(candles)-1].OpenTime

	if line, ok := lineThrough(highs, end, 1+a.config.Offset); ok {
		line.Color = ColorResistance
		line.Style = models.Style(models.LineStyleSolid)
		res.Resistance = &line
	}
	if line, ok := lineThrough(lows, end, 1-a.config.Offset); ok {
		line.Color = ColorSupport
		line.Style = models.Style(models.LineStyleSolid)
		res.Support = &line
	}

	res.Channel = a.channel(candles)
	return res
}

// lineThrough проводит линию через два последних свинга и продлевает ее до end.
// Цены умножаются на factor.
func lineThrough(swings []structure.Swing, end time.Time, factor float64) (models.TrendLine, bool) {
	if len(swings) < 2 {
		return models.TrendLine{}, false
	}
	p1, p2 := swings[len(swings)-2], swings[len(swings)-1]
	dt := p2.Time.Sub(p1.Time).Seconds()
	if dt <= 0 {
		return models.TrendLine{}, false
	}
	if end.Before(p2.Time) {
		end = p2.Time
	}

	slope := (p2.Price - p1.Price) / dt
	endPrice := p1.Price + slope*end.Sub(p1.Time).Seconds()

	return models.TrendLine{
		StartTime:  p1.Time,
		EndTime:    end,
		StartPrice: p1.Price * factor,
		EndPrice:   endPrice * factor,
	}, true
}

// channel канал линейной регрессии за последние ChannelPeriod свечей.
// Ширина канала - ATR, умноженный на ChannelFactor.
func (a *Analyzer) channel(candles []models.Candle) []models.TrendLine {
	period := a.config.ChannelPeriod
	if period < 2 || len(candles) < period || len(candles) <= a.config.ATRPeriod || a.config.ATRPeriod < 1 {
		return nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	last := len(candles) - 1
	slope := talib.LinearRegSlope(closes, period)[last]
	// значение регрессии на первой свече окна
	intercept := talib.LinearRegIntercept(closes, period)[last]
	atr := talib.Atr(highs, lows, closes, a.config.ATRPeriod)[last]
	width := atr * a.config.ChannelFactor

	start := candles[last-period+1].OpenTime
	end := candles[last].OpenTime
	startPrice := intercept
	endPrice := intercept + slope*float64(period-1)

	mid := models.TrendLine{
		StartTime:  start,
		EndTime:    end,
		StartPrice: startPrice,
		EndPrice:   endPrice,
		Color:      ColorChannel,
		Style:      models.Style(models.LineStyleDotted),
	}
	upper := mid
	upper.StartPrice += width
	upper.EndPrice += width
	upper.Style = models.Style(models.LineStyleDashed)
	lower := mid
	lower.StartPrice -= width
	lower.EndPrice -= width
	lower.Style = models.Style(models.LineStyleDashed)

	return []models.TrendLine{mid, upper, lower}
}
