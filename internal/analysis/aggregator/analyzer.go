package aggregator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/structchart/internal/analysis/fractal"
	"github.com/skalibog/structchart/internal/analysis/structure"
	"github.com/skalibog/structchart/internal/analysis/trendline"
	"github.com/skalibog/structchart/internal/analysis/volumedelta"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// Analyzer объединяет все аналитические компоненты
type Analyzer struct {
	config        config.AnalysisConfig
	structureAnal *structure.Analyzer
	fractalAnal   *fractal.Analyzer
	trendAnal     *trendline.Analyzer
	volumeAnal    *volumedelta.Analyzer
}

// NewAnalyzer создает новый анализатор
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{
		config:        cfg,
		structureAnal: structure.NewAnalyzer(cfg.Structure.SwingN),
		fractalAnal:   fractal.NewAnalyzer(cfg.Fractal),
		trendAnal:     trendline.NewAnalyzer(cfg.Trendline),
		volumeAnal:    volumedelta.NewAnalyzer(cfg.VolumeDelta),
	}
}

// Analyze запускает анализ структуры и фракталов параллельно и собирает
// ответ для графика: свечи, маркеры, трендовые линии и сводку
func (a *Analyzer) Analyze(ctx context.Context, candles []models.Candle) (*models.Payload, error) {
	if len(candles) == 0 {
		return models.EmptyPayload(), nil
	}

	var (
		structRes  structure.Result
		fractalRes fractal.Result
	)

	g, gctx := errgroup.WithContext(ctx)

	// Анализ структуры рынка
	g.Go(func() error {
		structRes = a.structureAnal.Analyze(candles)
		logger.Debug("AGGREGATOR: Анализ структуры завершен",
			zap.Int("points", len(structRes.Points)),
			zap.String("context", structRes.Context))
		return gctx.Err()
	})

	// Анализ сессионных фракталов
	g.Go(func() error {
		fractalRes = a.fractalAnal.Analyze(candles)
		logger.Debug("AGGREGATOR: Анализ фракталов завершен",
			zap.Int("fractals", len(fractalRes.Asia)+len(fractalRes.NY)),
			zap.Int("setups", len(fractalRes.Setups)))
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("анализ прерван: %w", err)
	}

	trend := a.trendAnal.Analyze(candles, structRes.Highs, structRes.Lows)
	var volume *volumedelta.Result
	if res, ok := a.volumeAnal.Analyze(candles); ok {
		volume = &res
	}

	payload := &models.Payload{
		Candles:     candles,
		Annotations: MergeAnnotations(structRes.Points, fractalRes.All),
		TrendLines:  trend.Lines(),
	}
	payload.Summary = Summarize(structRes, fractalRes, volume, len(payload.TrendLines))

	logger.Info("Анализ завершен",
		zap.Int("candles", len(payload.Candles)),
		zap.Int("markers", len(payload.Annotations)),
		zap.Int("trend_lines", len(payload.TrendLines)),
		zap.Int("setups", len(fractalRes.Setups)))

	return payload, nil
}

type annotationKey struct {
	minute time.Time
	kind   string
	price  float64
}

// MergeAnnotations объединяет точки структуры и фракталы, убирает дубликаты
// (минута, тип, цена до 5 знаков) и сортирует по времени
func MergeAnnotations(points []structure.Point, fractals []fractal.Point) []models.Annotation {
	all := make([]models.Annotation, 0, len(points)+len(fractals))
	for _, p := range points {
		all = append(all, models.Annotation{Time: p.Time, Type: string(p.Type), Price: p.Price})
	}
	for _, f := range fractals {
		all = append(all, models.Annotation{Time: f.Time, Type: string(f.Type), Price: f.Price})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	seen := make(map[annotationKey]struct{}, len(all))
	out := make([]models.Annotation, 0, len(all))
	for _, ann := range all {
		key := annotationKey{
			minute: ann.Time.UTC().Truncate(time.Minute),
			kind:   ann.Type,
			price:  math.Round(ann.Price*1e5) / 1e5,
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ann)
	}
	return out
}

// volumeDeltaNeutral порог дельты объемов, ниже которого перевес не отмечается
const volumeDeltaNeutral = 10.0

// Summarize формирует текстовую сводку анализа. volume может быть nil.
func Summarize(s structure.Result, f fractal.Result, volume *volumedelta.Result, trendLines int) []models.NarrativeItem {
	var contextStatus *bool
	switch {
	case structure.IsLong(s.Context):
		contextStatus = models.Bool(true)
	case structure.IsShort(s.Context):
		contextStatus = models.Bool(false)
	}

	items := []models.NarrativeItem{
		{Description: "Контекст рынка: " + s.Context, Status: contextStatus},
		{Description: fmt.Sprintf("Точки структуры: %d (максимумов %d, минимумов %d)", len(s.Points), len(s.Highs), len(s.Lows))},
		{Description: fmt.Sprintf("Фракталы сессий: Азия %d, Нью-Йорк %d", len(f.Asia), len(f.NY))},
		{Description: fmt.Sprintf("Трендовые линии: %d", trendLines)},
	}

	if volume != nil {
		var status *bool
		switch {
		case volume.Delta >= volumeDeltaNeutral:
			status = models.Bool(true)
		case volume.Delta <= -volumeDeltaNeutral:
			status = models.Bool(false)
		}
		items = append(items, models.NarrativeItem{
			Description: fmt.Sprintf("Дельта объема за %d свечей: %+.0f%%, импульсы %+d", volume.Candles, volume.Delta, volume.Impulses),
			Status:      status,
		})
	}

	if len(f.Setups) == 0 {
		return append(items, models.NarrativeItem{Description: "Сетапы не найдены", Status: models.Bool(false)})
	}
	for _, setup := range f.Setups {
		items = append(items, models.NarrativeItem{
			Description: fmt.Sprintf("%s %s: %s", setup.Type, setup.Time.UTC().Format("2006-01-02 15:04"), setup.Details()),
			Status:      models.Bool(true),
		})
	}
	return items
}
