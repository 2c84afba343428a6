package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/internal/chart"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/internal/termchart"
	"github.com/skalibog/structchart/pkg/logger"
	"github.com/skalibog/structchart/pkg/models"
)

const (
	defaultWidth    = 120
	defaultHeight   = 40
	narrativeLines  = 5
	panStep         = 5
	chartTop        = 1 // строка заголовка над графиком
	minChartHeight  = 6
	minLogsInterval = 200 * time.Millisecond
)

type logTickMsg time.Time

// model модель bubbletea. Все изменения графика происходят только в Update.
type model struct {
	ctx    context.Context
	config *config.Config

	canvas  *termchart.Chart
	session *chart.Session
	initErr error

	interval string
	cutoff   *time.Time

	width  int
	height int

	narrative   viewport.Model
	dateInput   textinput.Model
	editingDate bool

	logs   []string
	status string
}

func newModel(ctx context.Context, cfg *config.Config, fetcher chart.Fetcher) *model {
	m := &model{
		ctx:      ctx,
		config:   cfg,
		interval: cfg.Chart.DefaultTimeframe,
		width:    defaultWidth,
		height:   defaultHeight,
	}

	m.narrative = viewport.New(defaultWidth-4, narrativeLines)
	m.narrative.SetContent(renderNarrative(nil))

	m.dateInput = textinput.New()
	m.dateInput.Prompt = "Дата отсечки: "
	m.dateInput.Placeholder = models.DateLayout
	m.dateInput.CharLimit = len(models.DateLayout)

	w, h := m.chartSize()
	canvas, err := termchart.New(w, h)
	if err != nil {
		m.initErr = fmt.Errorf("%w: %w", chart.ErrSurfaceInit, err)
		return m
	}
	session, err := chart.NewSession(canvas, fetcher, chart.Options{
		BoundaryPadding: cfg.Chart.BoundaryPadding,
		Drawing: chart.LineOptions{
			Color: cfg.Chart.DrawingColor,
			Style: models.LineStyleSolid,
			Width: 2,
		},
	})
	if err != nil {
		m.initErr = err
		return m
	}
	m.canvas = canvas
	m.session = session
	return m
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.logTick()}
	if m.initErr != nil {
		logger.Error("Ошибка инициализации графика", zap.Error(m.initErr))
	} else {
		cmds = append(cmds, m.reload())
	}
	return tea.Batch(cmds...)
}

// reload открывает новое поколение запроса, сам запрос выполняется в команде
func (m *model) reload() tea.Cmd {
	if m.session == nil {
		return nil
	}
	sync := m.session.Sync
	ctx, req := sync.Begin(m.ctx, m.interval, m.cutoff)
	return func() tea.Msg {
		return fetchMsg(sync.Fetch(ctx, req))
	}
}

func (m *model) logTick() tea.Cmd {
	if !m.config.UI.ShowLogs {
		return nil
	}
	interval := time.Duration(m.config.UI.RefreshRate) * time.Millisecond
	if interval < minLogsInterval {
		interval = minLogsInterval
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return logTickMsg(t)
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editingDate {
			return m, m.updateDateInput(msg)
		}
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.narrative.Width = max(m.width-4, 1)
		if m.canvas != nil {
			m.canvas.Resize(m.chartSize())
		}

	case reloadMsg:
		return m, m.reload()

	case fetchMsg:
		if m.session != nil && m.session.Sync.Apply(chart.Result(msg)) {
			m.narrative.SetContent(renderNarrative(m.session.Sync.Current().Summary))
			m.narrative.GotoTop()
			if msg.Err != nil {
				m.status = "Ошибка загрузки: " + msg.Err.Error()
			} else {
				m.status = ""
			}
		}

	case logTickMsg:
		logs, err := readLogTail(m.config.Log.JSONFile, m.config.UI.LogLines)
		if err != nil {
			m.status = "Ошибка загрузки логов: " + err.Error()
		} else {
			m.logs = logs
		}
		return m, m.logTick()
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return tea.Quit
	}
	if m.session == nil {
		return nil
	}

	switch key {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(key[0] - '1')
		if idx >= len(m.config.Chart.Timeframes) {
			return nil
		}
		m.interval = m.config.Chart.Timeframes[idx]
		return m.reload()
	case "d":
		m.editingDate = true
		m.dateInput.SetValue("")
		if m.cutoff != nil {
			m.dateInput.SetValue(m.cutoff.Format(models.DateLayout))
		}
		m.dateInput.CursorEnd()
		return m.dateInput.Focus()
	case "t":
		m.session.Drawing.SelectTool(chart.ToolTrendLine)
	case "p", "esc":
		m.session.Drawing.SelectTool(chart.ToolPointer)
	case "c":
		if err := m.session.Drawing.ClearDrawings(); err != nil {
			m.status = "Ошибка очистки линий: " + err.Error()
		}
	case "r":
		return m.reload()
	case "f":
		m.canvas.FitContent()
	case "left":
		m.canvas.Pan(-panStep)
	case "right":
		m.canvas.Pan(panStep)
	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.narrative, cmd = m.narrative.Update(msg)
		return cmd
	}
	return nil
}

func (m *model) updateDateInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.editingDate = false
		m.dateInput.Blur()
		return nil
	case "enter":
		m.editingDate = false
		m.dateInput.Blur()
		value := strings.TrimSpace(m.dateInput.Value())
		if value == "" {
			m.cutoff = nil
			return m.reload()
		}
		t, err := models.ParseDate(value)
		if err != nil {
			m.status = "Неверная дата: " + value
			return nil
		}
		m.cutoff = &t
		return m.reload()
	}

	var cmd tea.Cmd
	m.dateInput, cmd = m.dateInput.Update(msg)
	return cmd
}

func (m *model) handleMouse(msg tea.MouseMsg) {
	if m.session == nil || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return
	}
	w, h := m.canvas.Size()
	x, y := msg.X, msg.Y-chartTop
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	if _, ok := m.session.Drawing.OnClick(chart.Click{X: x, Y: y}); ok {
		m.status = ""
	}
}

// chartSize размер области графика с учетом панелей
func (m *model) chartSize() (int, int) {
	h := m.height - chartTop - 1 - (narrativeLines + 3)
	if m.config.UI.ShowLogs {
		h -= m.config.UI.LogLines + 3
	}
	return m.width, max(h, minChartHeight)
}

func (m *model) View() string {
	if m.initErr != nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			errorPanelStyle.Width(max(m.width-6, 1)).Render(errorText(m.initErr)),
			footerStyle.Render("Q - выход"),
		)
	}

	parts := []string{
		m.renderHeader(),
		m.canvas.Render(),
		sectionStyle.Width(max(m.width-2, 1)).Render(
			lipgloss.JoinVertical(lipgloss.Left, sectionHeaderStyle.Render("АНАЛИЗ"), m.narrative.View()),
		),
	}
	if m.config.UI.ShowLogs {
		parts = append(parts, renderLogsSection(m.logs, m.width, m.config.UI.LogLines))
	}
	parts = append(parts, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) renderHeader() string {
	title := titleStyle.Render(m.config.Chart.Symbol + " " + m.interval)

	cutoff := "live"
	if m.cutoff != nil {
		cutoff = "до " + m.cutoff.Format(models.DateLayout)
	}
	status := cutoff
	if m.session != nil {
		status += " | инструмент: " + m.session.Drawing.Tool().String()
		if _, ok := m.session.Drawing.Pending(); ok {
			status += " (выберите вторую точку)"
		}
		if m.session.Sync.Loading() {
			status += " | загрузка..."
		}
		status += fmt.Sprintf(" | #%d", m.session.Sync.Generation())
	}
	if m.status != "" {
		status += " | " + m.status
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(title + statusStyle.Render(status))
}

func (m *model) renderFooter() string {
	if m.editingDate {
		return m.dateInput.View()
	}
	return footerStyle.MaxWidth(m.width).Render(
		"1-9 таймфрейм, D дата, T линия, P/Esc указатель, C очистить, R обновить, F вписать, ←/→ прокрутка, Q выход")
}

// renderNarrative форматирует сводку анализа
func renderNarrative(items []models.NarrativeItem) string {
	if len(items) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("Нет данных анализа")
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Status == nil:
			lines = append(lines, "• "+item.Description)
		case *item.Status:
			lines = append(lines, lipgloss.NewStyle().Foreground(successColor).Render("✔ "+item.Description))
		default:
			lines = append(lines, lipgloss.NewStyle().Foreground(errorColor).Render("✘ "+item.Description))
		}
	}
	return strings.Join(lines, "\n")
}

func errorText(err error) string {
	if errors.Is(err, chart.ErrSurfaceInit) {
		return "График недоступен\n\n" + err.Error()
	}
	return err.Error()
}
