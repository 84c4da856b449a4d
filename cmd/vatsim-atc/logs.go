package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rivo/tview"
)

// LogManager is an io.Writer that renders console log entries into a
// scrollable panel. Hand it to logger.NewWriter to route zap output on screen.
type LogManager struct {
	textView *tview.TextView

	// partial holds a trailing line not yet terminated by a newline
	partial string

	mu sync.Mutex
}

// NewLogManager creates a log panel keeping at most maxLines lines.
func NewLogManager(maxLines int) *LogManager {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxLines)
	textView.SetBorder(true).SetTitle(" Logs ")

	return &LogManager{textView: textView}
}

// View returns the tview component.
func (lm *LogManager) View() *tview.TextView {
	return lm.textView
}

// Write formats each complete line and appends it to the panel.
func (lm *LogManager) Write(p []byte) (int, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	data := lm.partial + string(p)
	lines := strings.Split(data, "\n")
	lm.partial = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		if line == "" {
			continue
		}
		fmt.Fprintln(lm.textView, formatLogLine(line))
	}
	lm.textView.ScrollToEnd()
	return len(p), nil
}

// formatLogLine colours a tab-separated console entry
// (time, level, logger name, message, fields) with tview tags.
func formatLogLine(line string) string {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return tview.Escape(line)
	}
	level := strings.ToUpper(parts[1])
	return fmt.Sprintf("[gray]%s[-] [%s]%-5s[-] %s",
		parts[0], levelColor(level), level, tview.Escape(strings.ReplaceAll(parts[2], "\t", " ")))
}

// levelColor returns the tview color tag for a log level
func levelColor(level string) string {
	switch level {
	case "DEBUG":
		return "gray"
	case "WARN":
		return "yellow"
	case "ERROR", "DPANIC", "PANIC", "FATAL":
		return "red"
	default:
		return "white"
	}
}
