package chart

import (
	"go.uber.org/zap"

	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// Tool инструмент рисования
type Tool int

const (
	ToolPointer Tool = iota
	ToolTrendLine
)

func (t Tool) String() string {
	switch t {
	case ToolTrendLine:
		return "trendline"
	default:
		return "pointer"
	}
}

// DefaultDrawingOptions стиль пользовательской линии по умолчанию
var DefaultDrawingOptions = LineOptions{Color: "#FF6D00", Style: models.LineStyleSolid, Width: 2}

// DrawingTool конечный автомат инструмента рисования трендовых линий в два клика
type DrawingTool struct {
	surface  Surface
	registry *Registry
	opts     LineOptions

	tool    Tool
	pending *Point
}

// NewDrawingTool создает инструмент рисования в режиме указателя
func NewDrawingTool(surface Surface, registry *Registry, opts LineOptions) *DrawingTool {
	if opts.Color == "" {
		opts = DefaultDrawingOptions
	}
	return &DrawingTool{
		surface:  surface,
		registry: registry,
		opts:     opts,
		tool:     ToolPointer,
	}
}

// Tool текущий инструмент
func (d *DrawingTool) Tool() Tool {
	return d.tool
}

// Pending первая точка незавершенной линии
func (d *DrawingTool) Pending() (Point, bool) {
	if d.pending == nil {
		return Point{}, false
	}
	return *d.pending, true
}

// SelectTool переключает инструмент и сбрасывает незавершенную линию
func (d *DrawingTool) SelectTool(t Tool) {
	d.tool = t
	d.pending = nil
}

// OnClick обрабатывает клик по графику. Возвращает идентификатор
// созданной линии и true, если клик завершил линию.
func (d *DrawingTool) OnClick(c Click) (OverlayID, bool) {
	if d.tool == ToolPointer {
		return "", false
	}

	t, okTime := d.surface.CoordinateToTime(c.X)
	price, okPrice := d.surface.CoordinateToPrice(c.Y)
	if !okTime || !okPrice {
		// Клик вне графика отменяет начатую линию
		d.pending = nil
		return "", false
	}

	point := Point{Time: t, Price: price}
	if d.pending == nil {
		d.pending = &point
		return "", false
	}

	start := *d.pending
	d.pending = nil

	id, err := d.surface.AddLine([]Point{start, point}, d.opts)
	if err != nil {
		logger.Warn("Не удалось создать пользовательскую линию", zap.Error(err))
		return "", false
	}
	d.registry.RegisterUser(id)

	logger.Debug("Нарисована линия",
		zap.Time("start", start.Time), zap.Float64("start_price", start.Price),
		zap.Time("end", point.Time), zap.Float64("end_price", point.Price))
	return id, true
}

// ClearDrawings удаляет все пользовательские линии, инструмент не меняется
func (d *DrawingTool) ClearDrawings() error {
	return d.registry.ClearUser()
}
