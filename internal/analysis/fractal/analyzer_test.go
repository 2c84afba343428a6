package fractal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

var (
	yesterday = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	today     = yesterday.AddDate(0, 0, 1)
)

// flatCandles часовые свечи с high=100 и low=99 с from по to включительно
func flatCandles(from, to time.Time) []models.Candle {
	var out []models.Candle
	for t := from; !t.After(to); t = t.Add(time.Hour) {
		out = append(out, models.Candle{OpenTime: t, Open: 99.5, High: 100, Low: 99, Close: 99.5})
	}
	return out
}

func setHigh(candles []models.Candle, t time.Time, v float64) {
	for i := range candles {
		if candles[i].OpenTime.Equal(t) {
			candles[i].High = v
		}
	}
}

func setLow(candles []models.Candle, t time.Time, v float64) {
	for i := range candles {
		if candles[i].OpenTime.Equal(t) {
			candles[i].Low = v
		}
	}
}

func testConfig() config.FractalConfig {
	return config.Default().Analysis.Fractal
}

func TestAnalyzeFindsResistSetup(t *testing.T) {
	candles := flatCandles(yesterday, today.Add(12*time.Hour))
	setHigh(candles, yesterday.Add(10*time.Hour), 200) // вне сессии Нью-Йорка
	setHigh(candles, yesterday.Add(15*time.Hour), 110)
	setLow(candles, yesterday.Add(18*time.Hour), 90)
	setHigh(candles, today.Add(3*time.Hour), 110.001)
	setLow(candles, today.Add(6*time.Hour), 95)

	res := NewAnalyzer(testConfig()).Analyze(candles)

	assert.Equal(t, today, res.Day)
	require.Len(t, res.Asia, 2)
	require.Len(t, res.NY, 2)
	for _, p := range res.NY {
		assert.Contains(t, []markers.Tag{markers.TagFractalHighNY1, markers.TagFractalLowNY1}, p.Type)
		assert.Equal(t, "NY (Day -1)", p.Session)
	}

	require.Len(t, res.Setups, 1)
	setup := res.Setups[0]
	assert.Equal(t, markers.TagSetupResist, setup.Type)
	assert.Equal(t, today.Add(3*time.Hour), setup.Time)
	assert.Equal(t, 110.001, setup.Price)
	assert.Equal(t, SessionSetup, setup.Session)
	assert.InDelta(t, 0.001, setup.Diff, 1e-9)
	assert.Contains(t, setup.Details(), "near NY F_H_NY1 at 110.00000")

	require.Len(t, res.All, 5)
	for i := 1; i < len(res.All); i++ {
		assert.False(t, res.All[i].Time.Before(res.All[i-1].Time))
	}
}

func TestAnalyzeSetupKinds(t *testing.T) {
	candles := flatCandles(yesterday, today.Add(9*time.Hour))
	setHigh(candles, yesterday.Add(14*time.Hour), 101)
	setLow(candles, yesterday.Add(20*time.Hour), 95)
	setLow(candles, today.Add(2*time.Hour), 95.0005)

	cfg := testConfig()
	res := NewAnalyzer(cfg).Analyze(candles)
	require.Len(t, res.Setups, 1)
	assert.Equal(t, markers.TagSetupSupport, res.Setups[0].Type)

	cfg.ProximityPips = 100000
	res = NewAnalyzer(cfg).Analyze(candles)
	require.Len(t, res.Setups, 2)
	kinds := []markers.Tag{res.Setups[0].Type, res.Setups[1].Type}
	assert.ElementsMatch(t, []markers.Tag{markers.TagSetupUnknown, markers.TagSetupSupport}, kinds)
}

func TestAnalyzeLookbackTags(t *testing.T) {
	dayBefore := yesterday.AddDate(0, 0, -1)
	candles := flatCandles(dayBefore, today.Add(9*time.Hour))
	setHigh(candles, dayBefore.Add(16*time.Hour), 105)

	res := NewAnalyzer(testConfig()).Analyze(candles)
	require.Len(t, res.NY, 1)
	assert.Equal(t, markers.TagFractalHighNY2, res.NY[0].Type)
	assert.Equal(t, "NY (Day -2)", res.NY[0].Session)
	assert.Empty(t, res.Setups)

	cfg := testConfig()
	cfg.NYLookbackDays = 1
	res = NewAnalyzer(cfg).Analyze(candles)
	assert.Empty(t, res.NY)
}

func TestAnalyzeEmpty(t *testing.T) {
	res := NewAnalyzer(testConfig()).Analyze(nil)
	assert.Empty(t, res.All)
	assert.Empty(t, res.Setups)
}

func TestSessionCandlesInclusive(t *testing.T) {
	candles := flatCandles(yesterday, today.Add(23*time.Hour))

	asia := SessionCandles(candles, today, 0, 9)
	require.Len(t, asia, 10)
	assert.Equal(t, today, asia[0].OpenTime)
	assert.Equal(t, today.Add(9*time.Hour), asia[9].OpenTime)

	wrap := SessionCandles(candles, today, 22, 2)
	require.Len(t, wrap, 5)
	assert.Equal(t, today, wrap[0].OpenTime)
	assert.Equal(t, today.Add(23*time.Hour), wrap[4].OpenTime)
}

func TestNYTags(t *testing.T) {
	assert.Equal(t, markers.TagFractalHighNY1, NYHighTag(1))
	assert.Equal(t, markers.TagFractalLowNY2, NYLowTag(2))
	assert.True(t, Point{Type: NYHighTag(3)}.IsHigh())
	assert.False(t, Point{Type: markers.TagFractalLowAsia}.IsHigh())
}
