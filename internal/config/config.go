package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// Переменные окружения, переопределяющие файл конфигурации
const (
	EnvAPIURL        = "STRUCTCHART_API_URL"
	EnvListen        = "STRUCTCHART_LISTEN"
	EnvBinanceKey    = "BINANCE_API_KEY"
	EnvBinanceSecret = "BINANCE_API_SECRET"
	EnvInfluxToken   = "INFLUX_TOKEN"
)

// Источники свечей сервера
const (
	SourceBinance = "binance"
	SourceInflux  = "influx"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	API      APIConfig      `yaml:"api"`
	Chart    ChartConfig    `yaml:"chart"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Binance  BinanceConfig  `yaml:"binance"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// APIConfig настройки клиента API данных графика
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout таймаут запроса
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChartConfig настройки графика
type ChartConfig struct {
	Symbol           string   `yaml:"symbol"`
	Timeframes       []string `yaml:"timeframes"`
	DefaultTimeframe string   `yaml:"default_timeframe"`
	BoundaryPadding  float64  `yaml:"boundary_padding"`
	AutoReload       string   `yaml:"auto_reload"` // cron, пусто - выключено
	DrawingColor     string   `yaml:"drawing_color"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate int  `yaml:"refresh_rate_ms"`
	LogLines    int  `yaml:"log_lines"`
	ShowLogs    bool `yaml:"show_logs"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
	Truncate bool   `yaml:"truncate"`
}

// ServerConfig настройки сервера анализа
type ServerConfig struct {
	Listen      string   `yaml:"listen"`
	Source      string   `yaml:"source"`
	Limit       int      `yaml:"limit"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	Symbol    string `yaml:"symbol"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// AnalysisConfig настройки аналитических модулей
type AnalysisConfig struct {
	Structure   StructureConfig   `yaml:"structure"`
	Fractal     FractalConfig     `yaml:"fractal"`
	Trendline   TrendlineConfig   `yaml:"trendline"`
	VolumeDelta VolumeDeltaConfig `yaml:"volume_delta"`
}

// StructureConfig настройки анализа структуры рынка
type StructureConfig struct {
	SwingN int `yaml:"swing_n"`
}

// FractalConfig настройки сессионных фракталов
type FractalConfig struct {
	N              int     `yaml:"n"`
	AsiaStartHour  int     `yaml:"asia_start_hour"`
	AsiaEndHour    int     `yaml:"asia_end_hour"`
	NYStartHour    int     `yaml:"ny_start_hour"`
	NYEndHour      int     `yaml:"ny_end_hour"`
	NYLookbackDays int     `yaml:"ny_lookback_days"`
	ProximityPips  float64 `yaml:"proximity_pips"`
	PipSize        float64 `yaml:"pip_size"`
}

// TrendlineConfig настройки трендовых линий
type TrendlineConfig struct {
	Offset        float64 `yaml:"offset"`
	ChannelFactor float64 `yaml:"channel_factor"`
	ChannelPeriod int     `yaml:"channel_period"`
	ATRPeriod     int     `yaml:"atr_period"`
}

// VolumeDeltaConfig настройки анализа дельты объемов
type VolumeDeltaConfig struct {
	Lookback              int     `yaml:"lookback"`
	SignificanceThreshold float64 `yaml:"significance_threshold"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:5000",
			TimeoutSeconds: 15,
		},
		Chart: ChartConfig{
			Symbol:           "BTCUSDT",
			Timeframes:       []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"},
			DefaultTimeframe: "1h",
			BoundaryPadding:  0.05,
			DrawingColor:     "#FF6D00",
		},
		UI: UIConfig{
			RefreshRate: 1000,
			LogLines:    8,
			ShowLogs:    true,
		},
		Log: LogConfig{
			Level:    "info",
			File:     "structchart.log",
			JSONFile: "structchart.json",
		},
		Server: ServerConfig{
			Listen:      ":5000",
			Source:      SourceBinance,
			Limit:       500,
			CORSOrigins: []string{"*"},
		},
		Binance: BinanceConfig{
			Symbol: "BTCUSDT",
		},
		Storage: StorageConfig{
			URL:          "http://localhost:8086",
			Organization: "structchart",
			Bucket:       "candles",
		},
		Analysis: AnalysisConfig{
			Structure: StructureConfig{SwingN: 5},
			Fractal: FractalConfig{
				N:              1,
				AsiaStartHour:  0,
				AsiaEndHour:    9,
				NYStartHour:    13,
				NYEndHour:      22,
				NYLookbackDays: 2,
				ProximityPips:  15,
				PipSize:        0.0001,
			},
			Trendline: TrendlineConfig{
				Offset:        0.001,
				ChannelFactor: 2.0,
				ChannelPeriod: 50,
				ATRPeriod:     14,
			},
			VolumeDelta: VolumeDeltaConfig{
				Lookback:              50,
				SignificanceThreshold: 2.0,
			},
		},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию,
// затем применяет .env и переменные окружения.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	if err := loadDotenv(envFiles...); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Загружена конфигурация", zap.String("path", path))
	logger.Info("Загружена конфигурация",
		zap.String("symbol", cfg.Chart.Symbol),
		zap.Strings("timeframes", cfg.Chart.Timeframes))
	return cfg, nil
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("ошибка загрузки %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.API.BaseURL, EnvAPIURL)
	override(&c.Server.Listen, EnvListen)
	override(&c.Binance.APIKey, EnvBinanceKey)
	override(&c.Binance.APISecret, EnvBinanceSecret)
	override(&c.Storage.Token, EnvInfluxToken)
}

// SetAPIURL переопределяет адрес сервера анализа (флаг командной строки)
// и заново проверяет конфигурацию. Пустой адрес ничего не меняет.
func (c *Config) SetAPIURL(baseURL string) error {
	if baseURL == "" {
		return nil
	}
	prev := c.API.BaseURL
	c.API.BaseURL = baseURL
	if err := c.Validate(); err != nil {
		c.API.BaseURL = prev
		return err
	}
	return nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url не задан")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url: некорректный адрес %q", c.API.BaseURL)
	}
	if len(c.Chart.Timeframes) == 0 {
		return errors.New("chart.timeframes пуст")
	}
	for _, tf := range c.Chart.Timeframes {
		if err := models.ValidateInterval(tf); err != nil {
			return fmt.Errorf("chart.timeframes: %w", err)
		}
	}
	if err := models.ValidateInterval(c.Chart.DefaultTimeframe); err != nil {
		return fmt.Errorf("chart.default_timeframe: %w", err)
	}
	if c.Chart.BoundaryPadding < 0 || c.Chart.BoundaryPadding >= 1 {
		return fmt.Errorf("chart.boundary_padding вне диапазона [0, 1): %v", c.Chart.BoundaryPadding)
	}
	if c.Chart.AutoReload != "" {
		if _, err := cron.ParseStandard(c.Chart.AutoReload); err != nil {
			return fmt.Errorf("chart.auto_reload: %w", err)
		}
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen не задан")
	}
	switch c.Server.Source {
	case SourceBinance, SourceInflux:
	default:
		return fmt.Errorf("server.source: неизвестный источник %q", c.Server.Source)
	}
	if c.Server.Source == SourceInflux && !c.Storage.Enabled {
		return errors.New("server.source influx требует storage.enabled")
	}
	if c.Server.Limit <= 0 || c.Server.Limit > 1500 {
		return fmt.Errorf("server.limit вне диапазона (0, 1500]: %d", c.Server.Limit)
	}
	if c.Analysis.Structure.SwingN < 1 || c.Analysis.Fractal.N < 1 {
		return errors.New("analysis: размер окна свинга и фрактала должен быть не меньше 1")
	}
	return nil
}

// LoggerOptions параметры инициализации логгера
func (c LogConfig) LoggerOptions(console bool) logger.Options {
	return logger.Options{
		Level:    c.Level,
		File:     c.File,
		JSONFile: c.JSONFile,
		Truncate: c.Truncate,
		Console:  console,
	}
}
