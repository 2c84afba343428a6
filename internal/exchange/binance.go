package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// MaxKlines ограничение Binance на количество свечей в одном запросе
const MaxKlines = 1500

// BinanceClient клиент для получения свечей фьючерсов Binance
type BinanceClient struct {
	futures *futures.Client
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		// флаг пакета, читается в NewClient
		futures.UseTestnet = true
	}
	client := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if client == nil {
		return nil, fmt.Errorf("ошибка создания клиента Binance")
	}
	return &BinanceClient{futures: client}, nil
}

// SetBaseURL меняет адрес API (тестовые стенды, прокси)
func (c *BinanceClient) SetBaseURL(url string) {
	c.futures.BaseURL = url
}

// GetKlines получает исторические свечи. Если end задан, возвращаются свечи
// не позже конца дня end (включительно, UTC).
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int, end *time.Time) ([]models.Candle, error) {
	if err := models.ValidateInterval(interval); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxKlines {
		limit = MaxKlines
	}

	svc := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if end != nil {
		svc = svc.EndTime(EndOfDay(*end).UnixMilli())
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := convertKline(symbol, interval, k)
		if err != nil {
			logger.Warn("Свеча Binance отброшена",
				zap.String("symbol", symbol),
				zap.Int64("open_time", k.OpenTime),
				zap.Error(err))
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// EndOfDay последняя миллисекунда календарного дня t (UTC)
func EndOfDay(t time.Time) time.Time {
	return models.StartOfDay(t).Add(24*time.Hour - time.Millisecond)
}

func convertKline(symbol, interval string, k *futures.Kline) (models.Candle, error) {
	values := make([]float64, 5)
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, fmt.Errorf("некорректное значение %q: %w", s, err)
		}
		values[i] = d.InexactFloat64()
	}
	return models.Candle{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
	}, nil
}
