// internal/analysis/volumedelta/analyzer.go
package volumedelta

import (
	"math"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// Result результат анализа дельты объемов
type Result struct {
	Candles  int     // свечей в окне
	Delta    float64 // накопленная дельта от -100 до 100
	Impulses int     // объемные импульсы: бычьи со знаком +, медвежьи со знаком -
}

// Analyzer реализует анализатор дельты объемов
type Analyzer struct {
	config config.VolumeDeltaConfig
}

// NewAnalyzer создает новый анализатор дельты объемов
func NewAnalyzer(cfg config.VolumeDeltaConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Analyze оценивает дельту объемов по последним Lookback свечам (свечи по возрастанию времени)
func (a *Analyzer) Analyze(candles []models.Candle) (Result, bool) {
	if a.config.Lookback < 1 || len(candles) == 0 {
		return Result{}, false
	}
	window := candles
	if len(window) > a.config.Lookback {
		window = window[len(window)-a.config.Lookback:]
	}

	res := Result{
		Candles:  len(window),
		Delta:    a.cumulativeDelta(window),
		Impulses: a.volumeImpulses(window),
	}
	logger.Debug("Анализ дельты объемов",
		zap.Int("candles", res.Candles),
		zap.Float64("delta", res.Delta),
		zap.Int("impulses", res.Impulses))
	return res, true
}

// cumulativeDelta накопленная дельта объемов, более свежие свечи весят больше
func (a *Analyzer) cumulativeDelta(window []models.Candle) float64 {
	var cumulativeDelta, totalVolume float64
	n := float64(len(window))

	for i, candle := range window {
		// Бычья свеча - объем покупателей, медвежья - продавцов
		delta := candle.Volume
		if candle.Close < candle.Open {
			delta = -delta
		}
		weight := float64(i+1) / n

		cumulativeDelta += delta * weight
		totalVolume += math.Abs(delta) * weight
	}

	if totalVolume == 0 {
		return 0
	}
	return cumulativeDelta / totalVolume * 100
}

// volumeImpulses считает свечи с объемом выше среднего в SignificanceThreshold раз
func (a *Analyzer) volumeImpulses(window []models.Candle) int {
	var total float64
	for _, c := range window {
		total += c.Volume
	}
	if total == 0 || a.config.SignificanceThreshold <= 0 {
		return 0
	}
	avg := total / float64(len(window))

	impulses := 0
	for _, c := range window {
		if c.Volume/avg < a.config.SignificanceThreshold {
			continue
		}
		if c.Close > c.Open {
			impulses++
		} else if c.Close < c.Open {
			impulses--
		}
	}
	return impulses
}
