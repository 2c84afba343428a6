package markers

import (
	"sort"
	"time"

	"github.com/skalibog/structchart/pkg/models"
)

// Tag тип точки анализа
type Tag string

const (
	TagUnknown Tag = ""

	// Структура рынка
	TagHigherHigh Tag = "HH"
	TagHigherLow  Tag = "HL"
	TagLowerHigh  Tag = "LH"
	TagLowerLow   Tag = "LL"
	TagHigh       Tag = "H"
	TagLow        Tag = "L"

	// Сессионные фракталы
	TagFractalHighAsia Tag = "F_H_AS"
	TagFractalLowAsia  Tag = "F_L_AS"
	TagFractalHighNY1  Tag = "F_H_NY1"
	TagFractalLowNY1   Tag = "F_L_NY1"
	TagFractalHighNY2  Tag = "F_H_NY2"
	TagFractalLowNY2   Tag = "F_L_NY2"

	// Сетапы
	TagSetupResist  Tag = "SETUP_Resist"
	TagSetupSupport Tag = "SETUP_Support"
	TagSetupUnknown Tag = "UNKNOWN_SETUP"
)

// Shape форма маркера
type Shape string

const (
	ShapeCircle    Shape = "circle"
	ShapeSquare    Shape = "square"
	ShapeArrowUp   Shape = "arrowUp"
	ShapeArrowDown Shape = "arrowDown"
)

// Position положение маркера относительно свечи
type Position string

const (
	AboveBar Position = "aboveBar"
	BelowBar Position = "belowBar"
)

// Descriptor визуальное описание маркера
type Descriptor struct {
	Shape    Shape
	Color    string
	Position Position
	Text     string
	Size     float64
}

// Marker маркер, привязанный ко времени свечи
type Marker struct {
	Time time.Time
	Descriptor
}

type style struct {
	shape    Shape
	color    string
	position Position
	size     float64
}

// table - единственный критерий включения маркера
var table = map[Tag]style{
	TagHigherHigh:      {ShapeArrowDown, "#2962FF", AboveBar, 1},
	TagHigherLow:       {ShapeCircle, "#26A69A", BelowBar, 1},
	TagLowerHigh:       {ShapeArrowUp, "#FF0000", BelowBar, 1},
	TagLowerLow:        {ShapeCircle, "#FF0000", AboveBar, 1},
	TagHigh:            {ShapeSquare, "#2962FF", AboveBar, 1},
	TagLow:             {ShapeSquare, "#26A69A", BelowBar, 1},
	TagFractalHighAsia: {ShapeCircle, "#FFA500", AboveBar, 1},
	TagFractalLowAsia:  {ShapeCircle, "#FFA500", BelowBar, 1},
	TagFractalHighNY1:  {ShapeCircle, "#1E90FF", AboveBar, 1},
	TagFractalLowNY1:   {ShapeCircle, "#1E90FF", BelowBar, 1},
	TagFractalHighNY2:  {ShapeCircle, "#00BFFF", AboveBar, 1},
	TagFractalLowNY2:   {ShapeCircle, "#00BFFF", BelowBar, 1},
	TagSetupResist:     {ShapeSquare, "#000000", AboveBar, 1.5},
	TagSetupSupport:    {ShapeSquare, "#000000", BelowBar, 1.5},
	TagSetupUnknown:    {ShapeCircle, "#808080", AboveBar, 1},
}

// ParseTag возвращает тег из таблицы или TagUnknown
func ParseTag(s string) Tag {
	t := Tag(s)
	if _, ok := table[t]; ok {
		return t
	}
	return TagUnknown
}

// Tags возвращает все известные теги
func Tags() []Tag {
	tags := make([]Tag, 0, len(table))
	for t := range table {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Classify сопоставляет точку анализа с визуальным описанием.
// Для тега вне таблицы возвращает false: такая точка не отображается.
func Classify(a models.Annotation) (Descriptor, bool) {
	tag := ParseTag(a.Type)
	if tag == TagUnknown {
		return Descriptor{}, false
	}

	st := table[tag]
	return Descriptor{
		Shape:    st.shape,
		Color:    st.color,
		Position: st.position,
		Text:     string(tag),
		Size:     st.size,
	}, true
}

// ClassifyAll классифицирует список точек, отбрасывая неизвестные.
// Результат отсортирован по времени (стабильно).
func ClassifyAll(annotations []models.Annotation) []Marker {
	result := make([]Marker, 0, len(annotations))
	for _, a := range annotations {
		d, ok := Classify(a)
		if !ok {
			continue
		}
		result = append(result, Marker{Time: a.Time.UTC(), Descriptor: d})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result
}
