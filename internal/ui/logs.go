package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// logChunk размер блока при чтении лога с конца
const logChunk = 8 * 1024

// readLogTail читает последние n записей JSON-лога в читаемом виде.
// Файл читается блоками с конца, поэтому время не зависит от размера лога.
// Отсутствующий файл не считается ошибкой.
func readLogTail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	var buf []byte
	offset := info.Size()
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := min(int64(logChunk), offset)
		offset -= size
		part := make([]byte, size)
		if _, err := file.ReadAt(part, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(part, buf...)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	// первая строка блока из середины файла может быть обрезана
	if offset > 0 {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	logs := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		logs = append(logs, formatLogLine(line))
	}
	return logs, nil
}

// formatLogLine форматирует запись zap: [время] [уровень] сообщение (поля)
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		// Не удалось распарсить JSON, выводим как есть
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)

	keys := make([]string, 0, len(zapLog))
	for k := range zapLog {
		switch k {
		case "level", "ts", "msg", "caller":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, zapLog[k])
	}
	return b.String()
}

func renderLogsSection(logs []string, width, lines int) string {
	header := sectionHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	start := 0
	if len(logs) > lines {
		start = len(logs) - lines
	}
	for i := start; i < len(logs); i++ {
		log := logs[i]

		// Выделение по уровню логирования
		style := lipgloss.NewStyle().MaxWidth(max(width-4, 1))
		switch {
		case strings.Contains(log, "[ERROR]"):
			style = style.Foreground(errorColor)
		case strings.Contains(log, "[INFO]"):
			style = style.Foreground(successColor)
		case strings.Contains(log, "[WARN]"):
			style = style.Foreground(warningColor)
		case strings.Contains(log, "[DEBUG]"):
			style = style.Foreground(lipgloss.Color("#9999ff"))
		}
		content.WriteString(style.Render(log))
		if i < len(logs)-1 {
			content.WriteString("\n")
		}
	}

	body := lipgloss.NewStyle().Height(lines).Render(content.String())
	return sectionStyle.Width(max(width-2, 1)).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, body),
	)
}
