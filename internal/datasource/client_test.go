package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/structchart/pkg/models"
)

const sampleBody = `{
  "ohlcv": [
    {"time": "2024-05-01T00:00:00+00:00", "open": "1.0850", "high": "1.0870", "low": 1.0840, "close": 1.0860},
    {"time": 1714525200000, "open": 1.0860, "high": 1.0880, "low": 1.0850, "close": "1.0875", "volume": "12"},
    {"time": "2024-05-01T02:00:00Z", "open": "n/a", "high": 1, "low": 1, "close": 1}
  ],
  "markers": [
    {"time": "2024-05-01T00:00:00Z", "type": "HH", "price": 1.087},
    {"time": "garbage", "type": "LL", "price": 1.0}
  ],
  "trendLines": [
    {"start_time": "2024-05-01T00:00:00Z", "end_time": 1714525200000, "start_price": 1.08, "end_price": "1.09", "lineStyle": 2},
    {"start_time": "2024-05-01T00:00:00Z", "end_time": "2024-05-01T01:00:00Z", "start_price": 1.08, "end_price": 1.09, "color": "#fff", "lineStyle": 9}
  ],
  "analysisSummary": [
    {"description": "Контекст: LONG", "status": true},
    {"description": "Сетапов нет", "status": false},
    {"description": "Свечей: 2"}
  ]
}`

func TestDecodeCoercesValues(t *testing.T) {
	p, err := Decode([]byte(sampleBody))
	require.NoError(t, err)

	require.Len(t, p.Candles, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), p.Candles[0].OpenTime)
	assert.InDelta(t, 1.085, p.Candles[0].Open, 1e-12)
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), p.Candles[1].OpenTime)
	assert.InDelta(t, 1.0875, p.Candles[1].Close, 1e-12)
	assert.Equal(t, 12.0, p.Candles[1].Volume)

	require.Len(t, p.Annotations, 1)
	assert.Equal(t, "HH", p.Annotations[0].Type)

	require.Len(t, p.TrendLines, 2)
	require.NotNil(t, p.TrendLines[0].Style)
	assert.Equal(t, models.LineStyleDashed, *p.TrendLines[0].Style)
	assert.InDelta(t, 1.09, p.TrendLines[0].EndPrice, 1e-12)
	assert.Nil(t, p.TrendLines[1].Style)
	assert.Equal(t, "#fff", p.TrendLines[1].Color)

	require.Len(t, p.Summary, 3)
	assert.True(t, *p.Summary[0].Status)
	assert.False(t, *p.Summary[1].Status)
	assert.Nil(t, p.Summary[2].Status)
}

func TestDecodeNonListSummary(t *testing.T) {
	for _, body := range []string{
		`{"ohlcv": [], "analysisSummary": {"description": "x"}}`,
		`{"ohlcv": [], "analysisSummary": "text"}`,
		`{"ohlcv": [], "analysisSummary": null}`,
		`{"ohlcv": []}`,
	} {
		p, err := Decode([]byte(body))
		require.NoError(t, err, body)
		assert.NotNil(t, p.Summary, body)
		assert.Empty(t, p.Summary, body)
		assert.NotNil(t, p.Candles, body)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`<html>`))
	assert.Error(t, err)
}

func TestToWireRoundTrip(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := &models.Payload{
		Candles:     []models.Candle{{OpenTime: start, Open: 1, High: 2, Low: 0.5, Close: 1.5}},
		Annotations: []models.Annotation{{Time: start, Type: "H", Price: 2}},
		TrendLines: []models.TrendLine{{
			StartTime: start, EndTime: start.Add(time.Hour), StartPrice: 1, EndPrice: 2,
			Style: models.Style(models.LineStyleDashed),
		}},
		Summary: []models.NarrativeItem{{Description: "ok", Status: models.Bool(true)}},
	}
	w := ToWire(p)
	assert.Equal(t, "2024-05-01T00:00:00Z", w.OHLCV[0].Time)
	require.NotNil(t, w.TrendLines[0].LineStyle)
	assert.Equal(t, 2, *w.TrendLines[0].LineStyle)

	empty := ToWire(nil)
	assert.NotNil(t, empty.OHLCV)
	assert.NotNil(t, empty.AnalysisSummary)
}

func TestClientFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chart_data", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)

	cutoff := time.Date(2024, 4, 30, 15, 0, 0, 0, time.UTC)
	p, err := c.Fetch(context.Background(), "15m", &cutoff)
	require.NoError(t, err)
	assert.Len(t, p.Candles, 2)
	assert.Equal(t, "endDate=2024-04-30&interval=15m", gotQuery)

	_, err = c.Fetch(context.Background(), "1h", nil)
	require.NoError(t, err)
	assert.Equal(t, "interval=1h", gotQuery)
}

func TestClientFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ohlcv": []}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "1h", nil)
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestClientFetchRejectsUnknownInterval(t *testing.T) {
	c, err := NewClient("http://localhost:1", time.Second)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "7m", nil)
	assert.ErrorIs(t, err, models.ErrUnknownInterval)
}

func TestClientFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Fetch(ctx, "1h", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:5000", time.Second)
	assert.Error(t, err)
}
