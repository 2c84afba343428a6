package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownInterval неизвестный код таймфрейма
var ErrUnknownInterval = errors.New("неизвестный таймфрейм")

// Intervals поддерживаемые коды таймфреймов в порядке возрастания
var Intervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w"}

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ValidateInterval проверяет код таймфрейма
func ValidateInterval(interval string) error {
	if _, ok := intervalDurations[interval]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
	}
	return nil
}

// IntervalDuration конвертирует строковый интервал в duration
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return time.Hour
}

// DateLayout формат даты отсечки (endDate)
const DateLayout = "2006-01-02"

// ParseDate разбирает дату отсечки в полночь UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка разбора даты %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay возвращает полночь UTC календарной даты момента t
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
