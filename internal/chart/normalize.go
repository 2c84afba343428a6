package chart

import (
	"math"
	"sort"
	"time"

	"github.com/skalibog/structchart/pkg/models"
)

// NormalizeCandles приводит время свечей к UTC с точностью до секунды,
// отбрасывает свечи с нечисловыми значениями и оставляет строго возрастающий ряд
// (при совпадении времени побеждает последняя свеча).
func NormalizeCandles(candles []models.Candle) (result []models.Candle, dropped int) {
	result = make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if !finite(c.Open, c.High, c.Low, c.Close) || c.OpenTime.IsZero() {
			dropped++
			continue
		}
		c.OpenTime = c.OpenTime.UTC().Truncate(time.Second)
		result = append(result, c)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})

	unique := result[:0]
	for _, c := range result {
		if n := len(unique); n > 0 && unique[n-1].OpenTime.Equal(c.OpenTime) {
			unique[n-1] = c
			dropped++
			continue
		}
		unique = append(unique, c)
	}
	return unique, dropped
}

// PriceExtent возвращает минимум Low и максимум High
func PriceExtent(candles []models.Candle) (low, high float64) {
	low, high = math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	return low, high
}

// DayBoundary момент вертикальной линии начала дня:
// дата отсечки в 00:00 UTC, либо дата последней свечи в 00:00 UTC.
func DayBoundary(candles []models.Candle, cutoff *time.Time) time.Time {
	if cutoff != nil {
		return models.StartOfDay(*cutoff)
	}
	if len(candles) == 0 {
		return time.Time{}
	}
	return models.StartOfDay(candles[len(candles)-1].OpenTime)
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
