package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/models"
)

const klinesBody = `[
  [1714521600000, "63000.10", "63500.00", "62800.50", "63400.00", "120.5", 1714525199999, "0", 100, "0", "0", "0"],
  [1714525200000, "63400.00", "63900.00", "63300.00", "63800.25", "98.1", 1714528799999, "0", 80, "0", "0", "0"],
  [1714528800000, "bad", "1", "1", "1", "1", 1714532399999, "0", 1, "0", "0", "0"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *BinanceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewBinanceClient(config.BinanceConfig{})
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)
	return client
}

func TestGetKlines(t *testing.T) {
	var query map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	})

	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	candles, err := client.GetKlines(context.Background(), "BTCUSDT", "1h", 500, &end)
	require.NoError(t, err)

	require.Len(t, candles, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), candles[0].OpenTime)
	assert.InDelta(t, 63000.10, candles[0].Open, 1e-9)
	assert.InDelta(t, 63800.25, candles[1].Close, 1e-9)
	assert.Equal(t, "BTCUSDT", candles[1].Symbol)
	assert.Equal(t, "1h", candles[1].Interval)

	assert.Equal(t, "BTCUSDT", query["symbol"])
	assert.Equal(t, "1h", query["interval"])
	assert.Equal(t, "500", query["limit"])
	wantEnd := time.Date(2024, 5, 1, 23, 59, 59, 999000000, time.UTC).UnixMilli()
	assert.Equal(t, strconv.FormatInt(wantEnd, 10), query["endTime"])
}

func TestGetKlinesRejectsUnknownInterval(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос не должен отправляться")
	})
	_, err := client.GetKlines(context.Background(), "BTCUSDT", "2m", 10, nil)
	assert.ErrorIs(t, err, models.ErrUnknownInterval)
}

func TestGetKlinesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	_, err := client.GetKlines(context.Background(), "NOPE", "1h", 10, nil)
	assert.Error(t, err)
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999000000, time.UTC), got)
}

type saverFunc func(ctx context.Context, candles []models.Candle) error

func (f saverFunc) SaveCandles(ctx context.Context, candles []models.Candle) error {
	return f(ctx, candles)
}

func TestSourceWritesThrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(klinesBody))
	})

	var saved int
	src := NewSource(client, "BTCUSDT", saverFunc(func(ctx context.Context, candles []models.Candle) error {
		saved += len(candles)
		return errors.New("influx недоступен")
	}))

	candles, err := src.LoadCandles(context.Background(), "1h", nil, 100)
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Equal(t, 2, saved)
	assert.Equal(t, "BTCUSDT", src.Symbol())
}
