package chart

import (
	"time"

	"github.com/skalibog/structchart/internal/markers"
	"github.com/skalibog/structchart/pkg/models"
)

// OverlayID непрозрачный идентификатор линии, выданный поверхностью
type OverlayID string

// Point точка графика (время, цена)
type Point struct {
	Time  time.Time
	Price float64
}

// Click координаты клика относительно области графика
type Click struct {
	X int
	Y int
}

// LineOptions стиль линии
type LineOptions struct {
	Color string
	Style models.LineStyle
	Width int
}

// CandleSeries ценовая серия со слоем маркеров
type CandleSeries interface {
	SetData(candles []models.Candle)
	// SetMarkers заменяет слой маркеров, nil очищает его
	SetMarkers(m []markers.Marker)
}

// LineRemover удаляет линии с поверхности
type LineRemover interface {
	RemoveLine(id OverlayID) error
}

// Surface поверхность отрисовки графика.
// Реализация выбирается один раз при создании сессии.
type Surface interface {
	LineRemover

	AddCandleSeries() (CandleSeries, error)
	AddLine(points []Point, opts LineOptions) (OverlayID, error)

	CoordinateToTime(x int) (time.Time, bool)
	CoordinateToPrice(y int) (float64, bool)

	FitContent()
	Resize(width, height int)
}
