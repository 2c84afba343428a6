package chart

import (
	"errors"
	"fmt"
)

// ErrSurfaceInit поверхность графика недоступна
var ErrSurfaceInit = errors.New("ошибка инициализации графика")

// Options настройки сессии графика
type Options struct {
	BoundaryPadding float64
	Drawing         LineOptions
}

// Session состояние одного графика: поверхность, серия, реестр линий,
// синхронизатор и инструмент рисования.
type Session struct {
	Surface  Surface
	Series   CandleSeries
	Registry *Registry
	Sync     *Synchronizer
	Drawing  *DrawingTool
}

// NewSession создает ценовую серию и связывает компоненты сессии
func NewSession(surface Surface, fetcher Fetcher, opts Options) (*Session, error) {
	if surface == nil {
		return nil, fmt.Errorf("%w: поверхность не задана", ErrSurfaceInit)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: источник данных не задан", ErrSurfaceInit)
	}

	series, err := surface.AddCandleSeries()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSurfaceInit, err)
	}
	if series == nil {
		return nil, fmt.Errorf("%w: серия свечей не создана", ErrSurfaceInit)
	}

	registry := NewRegistry(surface)
	return &Session{
		Surface:  surface,
		Series:   series,
		Registry: registry,
		Sync:     NewSynchronizer(fetcher, surface, series, registry, opts.BoundaryPadding),
		Drawing:  NewDrawingTool(surface, registry, opts.Drawing),
	}, nil
}
