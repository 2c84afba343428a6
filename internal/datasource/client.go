package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// ErrStatus сервер ответил кодом не из диапазона 2xx
var ErrStatus = errors.New("неуспешный ответ сервера")

// DefaultTimeout таймаут запроса по умолчанию
const DefaultTimeout = 15 * time.Second

const chartDataPath = "/api/chart_data"

// Client клиент API данных графика
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient создает клиента для сервера baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("некорректный адрес API %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("некорректный адрес API %q: нужен полный URL", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// URL адрес запроса данных для таймфрейма и даты отсечки
func (c *Client) URL(interval string, cutoff *time.Time) string {
	u := *c.baseURL
	u.Path = u.Path + chartDataPath

	q := url.Values{}
	q.Set("interval", interval)
	if cutoff != nil {
		q.Set("endDate", cutoff.UTC().Format(models.DateLayout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch запрашивает данные графика
func (c *Client) Fetch(ctx context.Context, interval string, cutoff *time.Time) (*models.Payload, error) {
	if err := models.ValidateInterval(interval); err != nil {
		return nil, err
	}

	target := c.URL(interval, cutoff)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: статус %d", ErrStatus, resp.StatusCode)
	}

	payload, err := Decode(body)
	if err != nil {
		return nil, err
	}

	logger.Debug("Получены данные графика",
		zap.String("interval", interval),
		zap.Int("candles", len(payload.Candles)),
		zap.Int("markers", len(payload.Annotations)),
		zap.Duration("elapsed", time.Since(start)))
	return payload, nil
}
