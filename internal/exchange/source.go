package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// CandleSaver хранилище, в которое дублируются полученные свечи
type CandleSaver interface {
	SaveCandles(ctx context.Context, candles []models.Candle) error
}

// Source источник свечей одного символа с Binance
type Source struct {
	client *BinanceClient
	symbol string
	saver  CandleSaver
}

// NewSource создает источник свечей. saver может быть nil.
func NewSource(client *BinanceClient, symbol string, saver CandleSaver) *Source {
	return &Source{client: client, symbol: symbol, saver: saver}
}

// LoadCandles загружает свечи и сохраняет их в хранилище, если оно задано.
// Ошибка записи в хранилище не прерывает загрузку.
func (s *Source) LoadCandles(ctx context.Context, interval string, end *time.Time, limit int) ([]models.Candle, error) {
	candles, err := s.client.GetKlines(ctx, s.symbol, interval, limit, end)
	if err != nil {
		return nil, err
	}

	if s.saver != nil && len(candles) > 0 {
		if err := s.saver.SaveCandles(ctx, candles); err != nil {
			logger.Warn("Ошибка сохранения свечей",
				zap.String("symbol", s.symbol),
				zap.String("interval", interval),
				zap.Error(err))
		}
	}
	return candles, nil
}

// Symbol торговый символ источника
func (s *Source) Symbol() string {
	return s.symbol
}
