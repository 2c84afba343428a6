package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/structchart/internal/chart"
	"github.com/skalibog/structchart/internal/config"
	"github.com/skalibog/structchart/pkg/models"
)

type fetchCall struct {
	interval string
	cutoff   *time.Time
}

type fakeFetcher struct {
	mu        sync.Mutex
	calls     []fetchCall
	noCandles bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, interval string, cutoff *time.Time) (*models.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{interval: interval, cutoff: cutoff})
	noCandles := f.noCandles
	f.mu.Unlock()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	step := models.IntervalDuration(interval)
	p := models.EmptyPayload()
	for i := 0; i < 30; i++ {
		base := 100 + float64(i%7)
		p.Candles = append(p.Candles, models.Candle{
			OpenTime: start.Add(time.Duration(i) * step),
			Open:     base, High: base + 2, Low: base - 2, Close: base + 1,
		})
	}
	p.Annotations = []models.Annotation{{Time: start.Add(step), Type: "HH", Price: 104}}
	p.Summary = []models.NarrativeItem{{Description: "Контекст рынка: LONG", Status: models.Bool(true)}}
	p.Summary = append(p.Summary, models.NarrativeItem{Description: "interval " + interval})
	p.TrendLines = []models.TrendLine{{
		StartTime: start, EndTime: start.Add(10 * step), StartPrice: 100, EndPrice: 105,
	}}
	if noCandles {
		p.Candles = nil
	}
	return p, nil
}

func (f *fakeFetcher) last() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Log.JSONFile = filepath.Join(t.TempDir(), "structchart.json")
	return cfg
}

func newTestModel(t *testing.T) (*model, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{}
	m := newModel(context.Background(), testConfig(t), f)
	require.NoError(t, m.initErr)
	return m, f
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run выполняет команду и передает ее сообщение в модель
func run(m *model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	m.Update(cmd())
}

func TestReloadAppliesPayload(t *testing.T) {
	m, f := newTestModel(t)

	run(m, m.reload())

	assert.Equal(t, "1h", f.last().interval)
	assert.Equal(t, 30, m.canvas.CandleCount())
	assert.Equal(t, 1, m.canvas.MarkerCount())
	assert.False(t, m.session.Sync.Loading())
	assert.Contains(t, m.narrative.View(), "✔ Контекст рынка: LONG")
	assert.Contains(t, m.View(), "BTCUSDT 1h")
}

func TestReloadWithoutCandlesShowsPlaceholder(t *testing.T) {
	m, f := newTestModel(t)
	run(m, m.reload())
	require.Equal(t, 30, m.canvas.CandleCount())

	f.mu.Lock()
	f.noCandles = true
	f.mu.Unlock()
	run(m, m.reload())

	assert.Zero(t, m.canvas.CandleCount())
	assert.Zero(t, m.canvas.MarkerCount())
	assert.Zero(t, m.canvas.LineCount())
	assert.Contains(t, m.narrative.View(), "Нет данных анализа")
}

func TestStaleFetchDiscarded(t *testing.T) {
	m, _ := newTestModel(t)

	first := m.reload()
	_, second := m.Update(key("2"))
	require.NotNil(t, second)

	m.Update(second())
	m.Update(first())

	assert.Equal(t, config.Default().Chart.Timeframes[1], m.session.Sync.LastRequest().Interval)
	assert.Contains(t, m.narrative.View(), "interval "+config.Default().Chart.Timeframes[1])
}

func TestTimeframeKeyOutOfRange(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(key("9"))
	assert.Nil(t, cmd)
	assert.Equal(t, "1h", m.interval)
}

func TestDateInput(t *testing.T) {
	m, f := newTestModel(t)

	m.Update(key("d"))
	require.True(t, m.editingDate)
	m.Update(key("2024-05-01"))
	_, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	run(m, cmd)

	assert.False(t, m.editingDate)
	require.NotNil(t, f.last().cutoff)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *f.last().cutoff)
	assert.Contains(t, m.renderHeader(), "до 2024-05-01")

	// пустое значение сбрасывает дату отсечки
	m.Update(key("d"))
	m.dateInput.SetValue("")
	_, cmd = m.Update(key("enter"))
	run(m, cmd)
	assert.Nil(t, m.cutoff)
	assert.Nil(t, f.last().cutoff)
}

func TestDateInputInvalid(t *testing.T) {
	m, f := newTestModel(t)

	m.Update(key("d"))
	m.Update(key("01.05.24"))
	_, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.Nil(t, m.cutoff)
	assert.Empty(t, f.calls)
	assert.Contains(t, m.status, "Неверная дата")
}

func TestMouseDrawsTrendLine(t *testing.T) {
	m, _ := newTestModel(t)
	run(m, m.reload())

	m.Update(key("t"))
	assert.Equal(t, chart.ToolTrendLine, m.session.Drawing.Tool())

	press := func(x, y int) tea.MouseMsg {
		return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	}
	m.Update(press(2, chartTop+2))
	_, pending := m.session.Drawing.Pending()
	assert.True(t, pending)
	assert.Contains(t, m.renderHeader(), "выберите вторую точку")

	m.Update(press(10, chartTop+5))
	assert.Equal(t, 1, m.session.Registry.UserCount())

	// перезагрузка не трогает пользовательские линии
	run(m, m.reload())
	assert.Equal(t, 1, m.session.Registry.UserCount())

	m.Update(key("c"))
	assert.Equal(t, 0, m.session.Registry.UserCount())
	assert.Equal(t, chart.ToolTrendLine, m.session.Drawing.Tool())

	m.Update(key("esc"))
	assert.Equal(t, chart.ToolPointer, m.session.Drawing.Tool())
}

func TestMouseOutsideChartIgnored(t *testing.T) {
	m, _ := newTestModel(t)
	run(m, m.reload())
	m.Update(key("t"))

	m.Update(tea.MouseMsg{X: 2, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	_, pending := m.session.Drawing.Pending()
	assert.False(t, pending)
}

func TestReloadMessage(t *testing.T) {
	m, f := newTestModel(t)
	_, cmd := m.Update(reloadMsg{})
	require.NotNil(t, cmd)
	run(m, cmd)
	assert.Len(t, f.calls, 1)
}

func TestWindowResize(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})

	w, h := m.canvas.Size()
	assert.Equal(t, 80, w)
	wantW, wantH := m.chartSize()
	assert.Equal(t, wantW, w)
	assert.Equal(t, wantH, h)
}

func TestSessionInitFailure(t *testing.T) {
	m := newModel(context.Background(), testConfig(t), nil)
	require.ErrorIs(t, m.initErr, chart.ErrSurfaceInit)

	assert.Contains(t, m.View(), "График недоступен")
	_, cmd := m.Update(key("r"))
	assert.Nil(t, cmd)
	_, cmd = m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderNarrative(t *testing.T) {
	assert.Contains(t, renderNarrative(nil), "Нет данных анализа")

	out := renderNarrative([]models.NarrativeItem{
		{Description: "да", Status: models.Bool(true)},
		{Description: "нет", Status: models.Bool(false)},
		{Description: "инфо"},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "✔ да")
	assert.Contains(t, lines[1], "✘ нет")
	assert.Contains(t, lines[2], "• инфо")
}

func TestLogTick(t *testing.T) {
	m, _ := newTestModel(t)
	line := `{"level":"INFO","ts":"01.05.2024 - 10:11:12.000000000Z","caller":"x.go:1","msg":"Анализ завершен","candles":7}`
	require.NoError(t, os.WriteFile(m.config.Log.JSONFile, []byte(line+"\n"), 0o644))

	_, cmd := m.Update(logTickMsg(time.Now()))
	assert.NotNil(t, cmd)
	require.Len(t, m.logs, 1)
	assert.Equal(t, "[10:11:12] [INFO] Анализ завершен (candles: 7)", m.logs[0])
}
