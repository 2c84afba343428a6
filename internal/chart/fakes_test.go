package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

type fakeLine struct {
	points []Point
	opts   LineOptions
}

type fakeSeries struct {
	data       []models.Candle
	markers    []markers.Marker
	setDataN   int
	setMarkerN int
}

func (s *fakeSeries) SetData(candles []models.Candle) {
	s.data = candles
	s.setDataN++
}

func (s *fakeSeries) SetMarkers(m []markers.Marker) {
	s.markers = m
	s.setMarkerN++
}

// fakeSurface поверхность в памяти: X - индекс минуты от origin, Y - цена = 1000 - Y
type fakeSurface struct {
	series    *fakeSeries
	seriesErr error
	lines     map[OverlayID]fakeLine
	removed   map[OverlayID]int
	removeErr map[OverlayID]error
	addErr    error
	nextID    int
	fits      int

	origin time.Time
	width  int
	height int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		series:    &fakeSeries{},
		lines:     make(map[OverlayID]fakeLine),
		removed:   make(map[OverlayID]int),
		removeErr: make(map[OverlayID]error),
		origin:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		width:     100,
		height:    50,
	}
}

func (f *fakeSurface) AddCandleSeries() (CandleSeries, error) {
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return f.series, nil
}

func (f *fakeSurface) AddLine(points []Point, opts LineOptions) (OverlayID, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.nextID++
	id := OverlayID(fmt.Sprintf("line-%d", f.nextID))
	f.lines[id] = fakeLine{points: points, opts: opts}
	return id, nil
}

func (f *fakeSurface) RemoveLine(id OverlayID) error {
	f.removed[id]++
	if err := f.removeErr[id]; err != nil {
		return err
	}
	if _, ok := f.lines[id]; !ok {
		return errors.New("unknown line")
	}
	delete(f.lines, id)
	return nil
}

func (f *fakeSurface) CoordinateToTime(x int) (time.Time, bool) {
	if x < 0 || x >= f.width {
		return time.Time{}, false
	}
	return f.origin.Add(time.Duration(x) * time.Minute), true
}

func (f *fakeSurface) CoordinateToPrice(y int) (float64, bool) {
	if y < 0 || y >= f.height {
		return 0, false
	}
	return 1000 - float64(y), true
}

func (f *fakeSurface) FitContent() {
	f.fits++
}

func (f *fakeSurface) Resize(width, height int) {
	f.width, f.height = width, height
}

// fakeFetcher отдает заранее заданные ответы по таймфрейму
type fakeFetcher struct {
	payloads map[string]*models.Payload
	err      error
	calls    []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, interval string, cutoff *time.Time) (*models.Payload, error) {
	f.calls = append(f.calls, interval)
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := f.payloads[interval]
	if !ok {
		return nil, errors.New("no payload")
	}
	return clonePayload(p), nil
}

func clonePayload(p *models.Payload) *models.Payload {
	return &models.Payload{
		Candles:     append([]models.Candle(nil), p.Candles...),
		Annotations: append([]models.Annotation(nil), p.Annotations...),
		TrendLines:  append([]models.TrendLine(nil), p.TrendLines...),
		Summary:     append([]models.NarrativeItem(nil), p.Summary...),
	}
}

func hourlyCandles(start time.Time, n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		base := 100 + float64(i)
		candles[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     base,
			High:     base + 2,
			Low:      base - 1,
			Close:    base + 1,
		}
	}
	return candles
}

func samplePayload(start time.Time, candles, trendLines int) *models.Payload {
	p := &models.Payload{
		Candles: hourlyCandles(start, candles),
		Annotations: []models.Annotation{
			{Time: start, Type: "H"},
			{Time: start.Add(time.Hour), Type: "XYZ"},
		},
	}
	for i := 0; i < trendLines; i++ {
		p.TrendLines = append(p.TrendLines, models.TrendLine{
			StartTime:  start,
			EndTime:    start.Add(time.Duration(candles-1) * time.Hour),
			StartPrice: 100 + float64(i),
			EndPrice:   110 + float64(i),
		})
	}
	return p
}
