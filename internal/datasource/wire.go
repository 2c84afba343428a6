package datasource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// WireCandle свеча в формате API
type WireCandle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// WireMarker точка анализа в формате API
type WireMarker struct {
	Time  string  `json:"time"`
	Type  string  `json:"type"`
	Price float64 `json:"price"`
}

// WireTrendLine трендовая линия в формате API
type WireTrendLine struct {
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Color      string  `json:"color,omitempty"`
	LineStyle  *int    `json:"lineStyle,omitempty"`
}

// WireNarrativeItem пункт сводки в формате API
type WireNarrativeItem struct {
	Description string `json:"description"`
	Status      *bool  `json:"status,omitempty"`
}

// WirePayload ответ /api/chart_data
type WirePayload struct {
	OHLCV           []WireCandle        `json:"ohlcv"`
	Markers         []WireMarker        `json:"markers"`
	TrendLines      []WireTrendLine     `json:"trendLines"`
	AnalysisSummary []WireNarrativeItem `json:"analysisSummary"`
}

// ToWire переводит ответ в формат API. Время передается в ISO-8601 UTC.
func ToWire(p *models.Payload) WirePayload {
	if p == nil {
		p = models.EmptyPayload()
	}
	out := WirePayload{
		OHLCV:           make([]WireCandle, 0, len(p.Candles)),
		Markers:         make([]WireMarker, 0, len(p.Annotations)),
		TrendLines:      make([]WireTrendLine, 0, len(p.TrendLines)),
		AnalysisSummary: make([]WireNarrativeItem, 0, len(p.Summary)),
	}
	for _, c := range p.Candles {
		out.OHLCV = append(out.OHLCV, WireCandle{
			Time:   formatTime(c.OpenTime),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	for _, a := range p.Annotations {
		out.Markers = append(out.Markers, WireMarker{Time: formatTime(a.Time), Type: a.Type, Price: a.Price})
	}
	for _, tl := range p.TrendLines {
		w := WireTrendLine{
			StartTime:  formatTime(tl.StartTime),
			EndTime:    formatTime(tl.EndTime),
			StartPrice: tl.StartPrice,
			EndPrice:   tl.EndPrice,
			Color:      tl.Color,
		}
		if tl.Style != nil {
			code := int(*tl.Style)
			w.LineStyle = &code
		}
		out.TrendLines = append(out.TrendLines, w)
	}
	for _, n := range p.Summary {
		out.AnalysisSummary = append(out.AnalysisSummary, WireNarrativeItem{Description: n.Description, Status: n.Status})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Разбор ответа. Поля читаются как сырой JSON: сервер может прислать
// числа строками, а время строкой ISO-8601 или числом миллисекунд.

type rawPayload struct {
	OHLCV           []rawCandle     `json:"ohlcv"`
	Markers         []rawMarker     `json:"markers"`
	TrendLines      []rawTrendLine  `json:"trendLines"`
	AnalysisSummary json.RawMessage `json:"analysisSummary"`
}

type rawCandle struct {
	Time   json.RawMessage `json:"time"`
	Open   json.RawMessage `json:"open"`
	High   json.RawMessage `json:"high"`
	Low    json.RawMessage `json:"low"`
	Close  json.RawMessage `json:"close"`
	Volume json.RawMessage `json:"volume"`
}

type rawMarker struct {
	Time  json.RawMessage `json:"time"`
	Type  string          `json:"type"`
	Price json.RawMessage `json:"price"`
}

type rawTrendLine struct {
	StartTime  json.RawMessage `json:"start_time"`
	EndTime    json.RawMessage `json:"end_time"`
	StartPrice json.RawMessage `json:"start_price"`
	EndPrice   json.RawMessage `json:"end_price"`
	Color      string          `json:"color"`
	LineStyle  json.RawMessage `json:"lineStyle"`
}

// Decode разбирает тело ответа /api/chart_data.
// Некорректные элементы отбрасываются с предупреждением, ошибка возвращается
// только если тело не является JSON-объектом.
func Decode(body []byte) (*models.Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа: %w", err)
	}

	p := models.EmptyPayload()
	for i, rc := range raw.OHLCV {
		c, err := rc.candle()
		if err != nil {
			logger.Warn("Свеча отброшена", zap.Int("index", i), zap.Error(err))
			continue
		}
		p.Candles = append(p.Candles, c)
	}

	for i, rm := range raw.Markers {
		t, err := parseTime(rm.Time)
		if err != nil {
			logger.Warn("Точка анализа отброшена", zap.Int("index", i), zap.Error(err))
			continue
		}
		a := models.Annotation{Time: t, Type: rm.Type}
		if price, ok, err := parseOptionalNumber(rm.Price); err == nil && ok {
			a.Price = price
		}
		p.Annotations = append(p.Annotations, a)
	}

	for i, rt := range raw.TrendLines {
		tl, err := rt.trendLine()
		if err != nil {
			logger.Warn("Трендовая линия отброшена", zap.Int("index", i), zap.Error(err))
			continue
		}
		p.TrendLines = append(p.TrendLines, tl)
	}

	p.Summary = decodeSummary(raw.AnalysisSummary)
	return p, nil
}

func decodeSummary(raw json.RawMessage) []models.NarrativeItem {
	items := []models.NarrativeItem{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return items
	}

	var list []WireNarrativeItem
	if trimmed[0] != '[' || json.Unmarshal(trimmed, &list) != nil {
		logger.Warn("Сводка анализа не является списком, используется пустая сводка")
		return items
	}
	for _, w := range list {
		items = append(items, models.NarrativeItem{Description: w.Description, Status: w.Status})
	}
	return items
}

func (rc rawCandle) candle() (models.Candle, error) {
	t, err := parseTime(rc.Time)
	if err != nil {
		return models.Candle{}, err
	}
	c := models.Candle{OpenTime: t}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *float64
	}{
		{"open", rc.Open, &c.Open},
		{"high", rc.High, &c.High},
		{"low", rc.Low, &c.Low},
		{"close", rc.Close, &c.Close},
	}
	for _, f := range fields {
		v, err := parseNumber(f.raw)
		if err != nil {
			return models.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if v, ok, err := parseOptionalNumber(rc.Volume); err == nil && ok {
		c.Volume = v
	}
	return c, nil
}

func (rt rawTrendLine) trendLine() (models.TrendLine, error) {
	var tl models.TrendLine
	var err error
	if tl.StartTime, err = parseTime(rt.StartTime); err != nil {
		return tl, fmt.Errorf("start_time: %w", err)
	}
	if tl.EndTime, err = parseTime(rt.EndTime); err != nil {
		return tl, fmt.Errorf("end_time: %w", err)
	}
	if tl.StartPrice, err = parseNumber(rt.StartPrice); err != nil {
		return tl, fmt.Errorf("start_price: %w", err)
	}
	if tl.EndPrice, err = parseNumber(rt.EndPrice); err != nil {
		return tl, fmt.Errorf("end_price: %w", err)
	}
	tl.Color = rt.Color

	code, ok, err := parseOptionalNumber(rt.LineStyle)
	if err == nil && ok {
		style := models.LineStyle(int(code))
		if style >= models.LineStyleSolid && style <= models.LineStyleSparseDotted {
			tl.Style = &style
		}
	}
	return tl, nil
}

// parseNumber принимает число или строку с числом
func parseNumber(raw json.RawMessage) (float64, error) {
	v, ok, err := parseOptionalNumber(raw)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("значение отсутствует")
	}
	return v, nil
}

func parseOptionalNumber(raw json.RawMessage) (float64, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false, nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, fmt.Errorf("некорректное число %q: %w", s, err)
	}
	return d.InexactFloat64(), true, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	models.DateLayout,
}

// parseTime принимает строку ISO-8601 или число миллисекунд (возможно строкой).
// Время без зоны считается UTC.
func parseTime(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, fmt.Errorf("время отсутствует")
	}
	s = strings.Trim(s, `"`)

	if d, err := decimal.NewFromString(s); err == nil {
		return time.UnixMilli(d.IntPart()).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("некорректное время %q", s)
}
