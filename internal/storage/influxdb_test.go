package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/models"
)

const queryCSV = "#datatype,string,long,dateTime:RFC3339,string,string,double,double,double,double,double\r\n" +
	"#group,false,false,false,true,true,false,false,false,false,false\r\n" +
	"#default,_result,,,,,,,,,\r\n" +
	",result,table,_time,symbol,interval,open,high,low,close,volume\r\n" +
	",,0,2024-05-01T02:00:00Z,BTCUSDT,1h,3,4,2,3.5,30\r\n" +
	",,0,2024-05-01T01:00:00Z,BTCUSDT,1h,2,3,1,2.5,20\r\n" +
	",,0,2024-05-01T00:00:00Z,BTCUSDT,1h,1,2,0.5,1.5,10\r\n" +
	"\r\n"

type fakeInflux struct {
	mu      sync.Mutex
	health  string
	writes  []string
	queries []string
}

func (f *fakeInflux) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"influxdb","message":"ready for queries and writes","status":"` + f.health + `","checks":[],"version":"2.7.0","commit":"abc"}`))
		case "/api/v2/write":
			assert.Equal(t, "candles", r.URL.Query().Get("bucket"))
			f.writes = append(f.writes, string(body))
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/query":
			f.queries = append(f.queries, string(body))
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			_, _ = w.Write([]byte(queryCSV))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestStorage(t *testing.T, health string) (*InfluxDBStorage, *fakeInflux, error) {
	t.Helper()
	fake := &fakeInflux{health: health}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	store, err := NewInfluxDBStorage(context.Background(), config.StorageConfig{
		Enabled:      true,
		URL:          srv.URL,
		Token:        "token",
		Organization: "structchart",
		Bucket:       "candles",
	})
	if store != nil {
		t.Cleanup(store.Close)
	}
	return store, fake, err
}

func TestNewInfluxDBStorageHealth(t *testing.T) {
	_, _, err := newTestStorage(t, "fail")
	assert.Error(t, err)
}

func TestSaveCandles(t *testing.T) {
	store, fake, err := newTestStorage(t, "pass")
	require.NoError(t, err)

	open := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err = store.SaveCandles(context.Background(), []models.Candle{
		{Symbol: "BTCUSDT", Interval: "1h", OpenTime: open, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Symbol: "BTCUSDT", Interval: "1h", OpenTime: open.Add(time.Hour), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 20},
	})
	require.NoError(t, err)

	require.Len(t, fake.writes, 1)
	lines := strings.Split(strings.TrimSpace(fake.writes[0]), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "candles,interval=1h,symbol=BTCUSDT "))
	assert.Contains(t, lines[0], "close=1.5")

	require.NoError(t, store.SaveCandles(context.Background(), nil))
	assert.Len(t, fake.writes, 1)
}

func TestGetCandlesAscending(t *testing.T) {
	store, fake, err := newTestStorage(t, "pass")
	require.NoError(t, err)

	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := NewCandleSource(store, "BTCUSDT")
	candles, err := src.LoadCandles(context.Background(), "1h", &end, 3)
	require.NoError(t, err)

	require.Len(t, candles, 3)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), candles[0].OpenTime)
	assert.Equal(t, time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC), candles[2].OpenTime)
	assert.Equal(t, 3.5, candles[2].Close)
	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), candles[2].CloseTime)
	assert.Equal(t, "BTCUSDT", src.Symbol())

	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], "2024-05-02T00:00:00Z")
	assert.Contains(t, fake.queries[0], "limit(n: 3)")
}

func TestGetCandlesRejectsUnknownInterval(t *testing.T) {
	store, _, err := newTestStorage(t, "pass")
	require.NoError(t, err)

	_, err = store.GetCandles(context.Background(), "BTCUSDT", "9m", nil, 10)
	assert.ErrorIs(t, err, models.ErrUnknownInterval)
}

func TestStopExpr(t *testing.T) {
	assert.Equal(t, "now()", stopExpr(nil))
	end := time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-01T00:00:00Z", stopExpr(&end))
}
