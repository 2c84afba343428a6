package chart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

const (
	// DefaultTrendColor цвет трендовой линии без указанного цвета
	DefaultTrendColor = "#2962FF"
	// BoundaryColor цвет вертикальной линии начала дня
	BoundaryColor = "#9E9E9E"
	// DefaultBoundaryPadding запас по цене для линии начала дня
	DefaultBoundaryPadding = 0.05
)

// Fetcher источник данных графика
type Fetcher interface {
	Fetch(ctx context.Context, interval string, cutoff *time.Time) (*models.Payload, error)
}

// Request запрос перезагрузки с номером поколения
type Request struct {
	Generation uint64
	Interval   string
	Cutoff     *time.Time
}

// Result ответ источника данных на запрос
type Result struct {
	Request Request
	Payload *models.Payload
	Err     error
}

// Synchronizer синхронизирует состояние графика с ответом источника данных.
// Методы Begin и Apply вызываются только из цикла событий UI.
type Synchronizer struct {
	fetcher  Fetcher
	surface  Surface
	series   CandleSeries
	registry *Registry
	padding  float64

	generation uint64
	applied    uint64
	cancel     context.CancelFunc
	current    *models.Payload
	last       Request
}

// NewSynchronizer создает синхронизатор
func NewSynchronizer(fetcher Fetcher, surface Surface, series CandleSeries, registry *Registry, padding float64) *Synchronizer {
	if padding <= 0 {
		padding = DefaultBoundaryPadding
	}
	return &Synchronizer{
		fetcher:  fetcher,
		surface:  surface,
		series:   series,
		registry: registry,
		padding:  padding,
		current:  models.EmptyPayload(),
	}
}

// Begin открывает новое поколение запроса и отменяет предыдущий запрос в полете
func (s *Synchronizer) Begin(parent context.Context, interval string, cutoff *time.Time) (context.Context, Request) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.generation++

	req := Request{Generation: s.generation, Interval: interval, Cutoff: cutoff}
	logger.Debug("Запрос данных графика",
		zap.Uint64("generation", req.Generation),
		zap.String("interval", interval),
		zap.Bool("backtest", cutoff != nil))
	return ctx, req
}

// Fetch выполняет запрос к источнику данных.
// Безопасен для вызова вне цикла событий: читает только неизменяемые поля.
func (s *Synchronizer) Fetch(ctx context.Context, req Request) Result {
	payload, err := s.fetcher.Fetch(ctx, req.Interval, req.Cutoff)
	return Result{Request: req, Payload: payload, Err: err}
}

// Apply применяет ответ, если он относится к последнему запросу.
// Ответ устаревшего поколения (успешный или с ошибкой) молча отбрасывается.
func (s *Synchronizer) Apply(res Result) bool {
	if res.Request.Generation != s.generation {
		logger.Debug("Устаревший ответ отброшен",
			zap.Uint64("generation", res.Request.Generation),
			zap.Uint64("current", s.generation))
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	payload := res.Payload
	if res.Err != nil || payload == nil {
		logger.Warn("Ошибка получения данных графика, используется пустой ответ",
			zap.String("interval", res.Request.Interval),
			zap.Error(res.Err))
		payload = models.EmptyPayload()
	}

	s.render(res.Request, payload)
	s.applied = res.Request.Generation
	s.last = res.Request
	return true
}

// Reload выполняет полный цикл перезагрузки синхронно
func (s *Synchronizer) Reload(ctx context.Context, interval string, cutoff *time.Time) bool {
	fetchCtx, req := s.Begin(ctx, interval, cutoff)
	return s.Apply(s.Fetch(fetchCtx, req))
}

// Loading true, пока последний запрос не применен
func (s *Synchronizer) Loading() bool {
	return s.generation != s.applied
}

// Generation номер последнего запроса
func (s *Synchronizer) Generation() uint64 {
	return s.generation
}

// Current последний примененный ответ
func (s *Synchronizer) Current() *models.Payload {
	return s.current
}

// LastRequest последний примененный запрос
func (s *Synchronizer) LastRequest() Request {
	return s.last
}

func (s *Synchronizer) render(req Request, payload *models.Payload) {
	// Сначала удаляем все, что создано прошлой перезагрузкой
	if err := s.registry.ClearServer(); err != nil {
		logger.Warn("Ошибка очистки серверных линий", zap.Error(err))
	}
	s.series.SetMarkers(nil)

	candles, dropped := NormalizeCandles(payload.Candles)
	if dropped > 0 {
		logger.Warn("Отброшены некорректные свечи", zap.Int("dropped", dropped))
	}
	payload.Candles = candles
	s.current = payload

	if len(candles) == 0 {
		// без свечей маркеры, линии и сводка не показываются
		payload.Annotations = []models.Annotation{}
		payload.TrendLines = []models.TrendLine{}
		payload.Summary = []models.NarrativeItem{}
		s.series.SetData([]models.Candle{})
		logger.Warn("Нет данных для отображения графика", zap.String("interval", req.Interval))
		return
	}

	s.series.SetData(candles)
	s.drawDayBoundary(candles, req.Cutoff)

	list := markers.ClassifyAll(payload.Annotations)
	s.series.SetMarkers(list)
	if skipped := len(payload.Annotations) - len(list); skipped > 0 {
		logger.Debug("Пропущены точки неизвестного типа", zap.Int("count", skipped))
	}

	for _, tl := range payload.TrendLines {
		s.drawTrendLine(tl)
	}

	s.surface.FitContent()
	logger.Info("График обновлен",
		zap.String("interval", req.Interval),
		zap.Int("candles", len(candles)),
		zap.Int("markers", len(list)),
		zap.Int("trend_lines", len(payload.TrendLines)),
		zap.Uint64("generation", req.Generation))
}

func (s *Synchronizer) drawDayBoundary(candles []models.Candle, cutoff *time.Time) {
	boundary := DayBoundary(candles, cutoff)
	low, high := PriceExtent(candles)
	pad := (high - low) * s.padding
	if pad == 0 {
		pad = high * s.padding
	}

	id, err := s.surface.AddLine([]Point{
		{Time: boundary, Price: low - pad},
		{Time: boundary, Price: high + pad},
	}, LineOptions{Color: BoundaryColor, Style: models.LineStyleDashed, Width: 1})
	if err != nil {
		logger.Warn("Не удалось создать линию начала дня", zap.Time("time", boundary), zap.Error(err))
		return
	}
	s.registry.RegisterServer(id)
}

func (s *Synchronizer) drawTrendLine(tl models.TrendLine) {
	opts := LineOptions{Color: tl.Color, Style: models.LineStyleSolid, Width: 2}
	if opts.Color == "" {
		opts.Color = DefaultTrendColor
	}
	if tl.Style != nil {
		opts.Style = *tl.Style
	}

	id, err := s.surface.AddLine([]Point{
		{Time: tl.StartTime.UTC(), Price: tl.StartPrice},
		{Time: tl.EndTime.UTC(), Price: tl.EndPrice},
	}, opts)
	if err != nil {
		logger.Warn("Не удалось создать трендовую линию", zap.Error(err))
		return
	}
	s.registry.RegisterServer(id)
}
