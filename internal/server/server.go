package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/datasource"
	"github.com/skalibog/structchart/internal/metrics"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

// DefaultInterval таймфрейм, если параметр interval не передан
const DefaultInterval = "1h"

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// CandleLoader источник свечей
type CandleLoader interface {
	LoadCandles(ctx context.Context, interval string, end *time.Time, limit int) ([]models.Candle, error)
}

// Analyzer строит ответ для графика по свечам
type Analyzer interface {
	Analyze(ctx context.Context, candles []models.Candle) (*models.Payload, error)
}

// errLoad ошибка загрузки свечей, отдается как 502
var errLoad = errors.New("ошибка загрузки свечей")

// Server HTTP API сервера анализа
type Server struct {
	config   config.ServerConfig
	loader   CandleLoader
	analyzer Analyzer
	group    singleflight.Group
	engine   *gin.Engine
}

// New создает сервер и регистрирует маршруты
func New(cfg config.ServerConfig, loader CandleLoader, analyzer Analyzer) *Server {
	s := &Server{
		config:   cfg,
		loader:   loader,
		analyzer: analyzer,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type"}
	corsCfg.MaxAge = 12 * time.Hour
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/chart_data", s.chartData)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = r
	return s
}

// Handler возвращает HTTP-обработчик сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run запускает сервер и останавливает его при отмене ctx
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Сервер анализа запущен", zap.String("listen", s.config.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Остановка сервера анализа")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	return nil
}

func (s *Server) chartData(c *gin.Context) {
	interval := c.DefaultQuery("interval", DefaultInterval)
	if err := models.ValidateInterval(interval); err != nil {
		metrics.ObserveRequest(interval, http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var end *time.Time
	endDate := c.Query("endDate")
	if endDate != "" {
		t, err := models.ParseDate(endDate)
		if err != nil {
			metrics.ObserveRequest(interval, http.StatusBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		end = &t
	}

	key := interval + "|" + endDate
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// общий запрос не отменяется вместе с первым клиентом
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), requestTimeout)
		defer cancel()
		return s.build(ctx, interval, end)
	})

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errLoad) {
			status = http.StatusBadGateway
		}
		logger.Error("Ошибка подготовки данных графика",
			zap.String("interval", interval),
			zap.String("endDate", endDate),
			zap.Error(err))
		metrics.ObserveRequest(interval, status)
		c.JSON(status, datasource.ToWire(models.EmptyPayload()))
		return
	}

	metrics.ObserveRequest(interval, http.StatusOK)
	if shared {
		logger.Debug("Ответ получен из общего запроса", zap.String("key", key))
	}
	c.JSON(http.StatusOK, v.(datasource.WirePayload))
}

func (s *Server) build(ctx context.Context, interval string, end *time.Time) (datasource.WirePayload, error) {
	started := time.Now()

	candles, err := s.loader.LoadCandles(ctx, interval, end, s.config.Limit)
	if err != nil {
		return datasource.WirePayload{}, fmt.Errorf("%w: %v", errLoad, err)
	}

	payload, err := s.analyzer.Analyze(ctx, candles)
	if err != nil {
		return datasource.WirePayload{}, fmt.Errorf("ошибка анализа: %w", err)
	}

	metrics.ObserveAnalysis(interval, time.Since(started), len(candles))
	logger.Info("API: Подготовлены данные графика",
		zap.String("interval", interval),
		zap.Int("candles", len(payload.Candles)),
		zap.Int("markers", len(payload.Annotations)),
		zap.Duration("took", time.Since(started)))

	return datasource.ToWire(payload), nil
}

// requestLogger пишет запросы в zap
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP запрос",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}
