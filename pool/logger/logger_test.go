package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripColors(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestCustomHandler(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		log      func(l *slog.Logger)
		contains []string
		excludes []string
	}{
		{
			name:  "db info line",
			level: slog.LevelInfo,
			log: func(l *slog.Logger) {
				l.Info("Query executed", slog.String("type", "db"), slog.String("operation", "claim"))
			},
			contains: []string{"[VMQ]", "[INFO]", "[DB]", "Query executed", "operation=claim"},
			excludes: []string{"type=db"},
		},
		{
			name:  "error folds cause into message",
			level: slog.LevelInfo,
			log: func(l *slog.Logger) {
				l.Error("Allocation failed", slog.String("type", "error"), slog.Any("error", errors.New("boom")))
			},
			contains: []string{"[ERROR]", "[ERR]", "Allocation failed", ": boom"},
			excludes: []string{"error=boom"},
		},
		{
			name:  "warn keeps error attribute",
			level: slog.LevelInfo,
			log: func(l *slog.Logger) {
				l.Warn("Rate limited", slog.Any("error", errors.New("slow down")))
			},
			contains: []string{"[WARN]", "[SYS]", "error=slow down"},
		},
		{
			name:  "below level is dropped",
			level: slog.LevelWarn,
			log: func(l *slog.Logger) {
				l.Info("hidden")
			},
			excludes: []string{"hidden"},
		},
		{
			name:  "with attrs and groups",
			level: slog.LevelDebug,
			log: func(l *slog.Logger) {
				l.With(slog.String("request_id", "abc")).WithGroup("req").Debug("Handled", slog.Int("status", 201))
			},
			contains: []string{"[DEBUG]", "request_id=abc", "[Status: 201]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := slog.New(NewHandlerWithWriter("VMQ", tt.level, &buf))
			tt.log(l)

			out := stripColors(buf.String())
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.False(t, strings.Contains(out, unwanted), "unexpected %q in %q", unwanted, out)
			}
		})
	}
}

func TestGlobalHelpers(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandlerWithWriter("VMQ", slog.LevelDebug, &buf)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	LogRequest("POST", "/extract", 404, 3*time.Millisecond)
	LogQuery("SELECT 1", time.Millisecond, nil)
	LogJob("Archive scheduler started")
	LogError("Scheduled snapshot failed", errors.New("bucket missing"))

	lines := strings.Split(strings.TrimSpace(stripColors(buf.String())), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "[WARN] ")
	assert.Contains(t, lines[0], "[HTTP] HTTP request rejected [Status: 404]")
	assert.Contains(t, lines[1], "[DEBUG] ")
	assert.Contains(t, lines[1], "[DB] Query executed")
	assert.Contains(t, lines[2], "[JOB] Archive scheduler started")
	assert.Contains(t, lines[3], "[ERR] Scheduled snapshot failed")
	assert.Contains(t, lines[3], ": bucket missing")
}
