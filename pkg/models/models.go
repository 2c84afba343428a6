package models

import (
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Annotation представляет точку анализа (свинг, фрактал, сетап) на свече
type Annotation struct {
	Time  time.Time
	Type  string
	Price float64
}

// LineStyle код стиля линии (совпадает с кодами библиотеки графиков фронтенда)
type LineStyle int

const (
	LineStyleSolid LineStyle = iota
	LineStyleDotted
	LineStyleDashed
	LineStyleLargeDashed
	LineStyleSparseDotted
)

// TrendLine представляет трендовую линию, рассчитанную сервером
type TrendLine struct {
	StartTime  time.Time
	EndTime    time.Time
	StartPrice float64
	EndPrice   float64
	Color      string     // пусто - цвет по умолчанию
	Style      *LineStyle // nil - сплошная линия
}

// NarrativeItem представляет пункт текстовой сводки анализа
type NarrativeItem struct {
	Description string
	Status      *bool // nil - статус отсутствует
}

// Payload представляет полный ответ источника данных для графика
type Payload struct {
	Candles     []Candle
	Annotations []Annotation
	TrendLines  []TrendLine
	Summary     []NarrativeItem
}

// EmptyPayload возвращает пустой, но корректно типизированный ответ
func EmptyPayload() *Payload {
	return &Payload{
		Candles:     []Candle{},
		Annotations: []Annotation{},
		TrendLines:  []TrendLine{},
		Summary:     []NarrativeItem{},
	}
}

// Bool возвращает указатель на значение статуса
func Bool(v bool) *bool {
	return &v
}

// Style возвращает указатель на стиль линии
func Style(s LineStyle) *LineStyle {
	return &s
}
