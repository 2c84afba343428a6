package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skalibog/structchart/internal/analysis/aggregator"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/exchange"
	"github.com/skalibog/structchart/internal/server"
	"github.com/skalibog/structchart/internal/storage"
	"github.com/skalibog/structchart/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	envFile := flag.String("env", ".env", "файл с переменными окружения")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.LoggerOptions(true)); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if logger.ParseLevel(cfg.Log.Level) > zapcore.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	var store *storage.InfluxDBStorage
	if cfg.Storage.Enabled {
		store, err = storage.NewInfluxDBStorage(ctx, cfg.Storage)
		if err != nil {
			logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
		}
		defer store.Close()
	}

	// Источник свечей: биржа или хранилище (бэктест)
	var loader server.CandleLoader
	switch cfg.Server.Source {
	case config.SourceInflux:
		loader = storage.NewCandleSource(store, cfg.Binance.Symbol)
	default:
		client, err := exchange.NewBinanceClient(cfg.Binance)
		if err != nil {
			logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
		}
		var saver exchange.CandleSaver
		if store != nil {
			saver = store
		}
		loader = exchange.NewSource(client, cfg.Binance.Symbol, saver)
	}

	logger.Info("Запуск сервера анализа",
		zap.String("symbol", cfg.Binance.Symbol),
		zap.String("source", cfg.Server.Source),
		zap.Bool("storage", store != nil))

	srv := server.New(cfg.Server, loader, aggregator.NewAnalyzer(cfg.Analysis))
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Ошибка работы сервера", zap.Error(err))
	}
	logger.Info("Завершение работы")
}
