package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/chart"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/logger"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
	// Секции сводки и логов
	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	errorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Foreground(errorColor).
			Padding(1, 2)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)

// Сообщения для обновления UI
type (
	// reloadMsg перезагрузка по расписанию
	reloadMsg struct{}
	// fetchMsg ответ источника данных
	fetchMsg chart.Result
)

// TermUI представляет терминальный интерфейс графика
type TermUI struct {
	config  *config.Config
	fetcher chart.Fetcher
	program *tea.Program
}

// NewTermUI создает интерфейс графика
func NewTermUI(cfg *config.Config, fetcher chart.Fetcher) *TermUI {
	return &TermUI{
		config:  cfg,
		fetcher: fetcher,
	}
}

// Run запускает UI и блокируется до выхода пользователя или отмены ctx
func (ui *TermUI) Run(ctx context.Context) error {
	m := newModel(ctx, ui.config, ui.fetcher)
	ui.program = tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if spec := ui.config.Chart.AutoReload; spec != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(spec, ui.Reload); err != nil {
			return fmt.Errorf("ошибка расписания автообновления %q: %w", spec, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("Автообновление графика включено", zap.String("schedule", spec))
	}

	if _, err := ui.program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// Reload запрашивает перезагрузку графика. Безопасен для вызова из других горутин.
func (ui *TermUI) Reload() {
	if ui.program != nil {
		ui.program.Send(reloadMsg{})
	}
}
