package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/datasource"
	"github.com/skalibog/structchart/internal/ui"
	"github.com/skalibog/structchart/pkg/logger"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	envFile := flag.String("env", ".env", "файл с переменными окружения")
	apiURL := flag.String("api", "", "адрес сервера анализа (перекрывает api.base_url)")
	flag.Parse()

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.SetAPIURL(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка в параметре -api: %v\n", err)
		os.Exit(1)
	}

	// Логи пишутся только в файлы: терминал занят интерфейсом
	if err := logger.Init(cfg.Log.LoggerOptions(false)); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := datasource.NewClient(cfg.API.BaseURL, cfg.API.Timeout())
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента сервера анализа", zap.Error(err))
	}

	logger.Info("Запуск графика",
		zap.String("symbol", cfg.Chart.Symbol),
		zap.String("api", cfg.API.BaseURL))

	// Запускаем UI в основном потоке (блокирующий вызов)
	if err := ui.NewTermUI(cfg, client).Run(ctx); err != nil {
		logger.Error("Ошибка работы интерфейса", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("Завершение работы")
}
