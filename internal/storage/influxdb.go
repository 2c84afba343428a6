// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

const candleMeasurement = "candles"

// InfluxDBStorage хранилище свечей в InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB и проверяет соединение
func NewInfluxDBStorage(ctx context.Context, cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет свечи одним запросом
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(candles))
	for _, candle := range candles {
		points = append(points, influxdb2.NewPoint(
			candleMeasurement,
			map[string]string{
				"symbol":   candle.Symbol,
				"interval": candle.Interval,
			},
			map[string]interface{}{
				"open":   candle.Open,
				"high":   candle.High,
				"low":    candle.Low,
				"close":  candle.Close,
				"volume": candle.Volume,
			},
			candle.OpenTime,
		))
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	logger.Debug("Свечи сохранены", zap.Int("count", len(points)), zap.String("bucket", s.bucket))
	return nil
}

// GetCandles получает последние limit свечей не позже end (nil - до текущего момента).
// Свечи возвращаются по возрастанию времени.
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, interval string, end *time.Time, limit int) ([]models.Candle, error) {
	if err := models.ValidateInterval(interval); err != nil {
		return nil, err
	}

	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: 0, stop: %s)
			|> filter(fn: (r) => r._measurement == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, stopExpr(end), candleMeasurement, symbol, interval, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}
	defer result.Close()

	var candles []models.Candle
	for result.Next() {
		record := result.Record()

		timestamp := record.Time().UTC()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		close, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: timestamp.Add(models.IntervalDuration(interval)),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// запрос отдает свечи от новых к старым
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// stopExpr верхняя граница range: конец дня отсечки или now()
func stopExpr(end *time.Time) string {
	if end == nil {
		return "now()"
	}
	return models.StartOfDay(*end).Add(24 * time.Hour).Format(time.RFC3339)
}

// CandleSource источник свечей одного символа из хранилища (офлайн бэктесты)
type CandleSource struct {
	store  *InfluxDBStorage
	symbol string
}

// NewCandleSource создает источник свечей из хранилища
func NewCandleSource(store *InfluxDBStorage, symbol string) *CandleSource {
	return &CandleSource{store: store, symbol: symbol}
}

// LoadCandles загружает свечи из хранилища
func (s *CandleSource) LoadCandles(ctx context.Context, interval string, end *time.Time, limit int) ([]models.Candle, error) {
	return s.store.GetCandles(ctx, s.symbol, interval, end, limit)
}

// Symbol торговый символ источника
func (s *CandleSource) Symbol() string {
	return s.symbol
}
