package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moodlescraper/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "loud"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			logger, err := NewWithWriter(tt.cfg, &out)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWithWriter() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("NewWithWriter() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace-all", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v", tt.level, err)
			}
			if got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestConsoleOutputUsesLevelLabels(t *testing.T) {
	var out bytes.Buffer
	logger, err := NewWithWriter(&config.LoggingConfig{Level: "debug"}, &out)
	require.NoError(t, err)

	logger.Warn("staging area busy")

	assert.Contains(t, out.String(), "WARN")
	assert.Contains(t, out.String(), "| staging area busy")
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("entry", "Algorithms").
		WithFields(map[string]interface{}{"group": "Assignment1", "files": 2}).
		WithError(fmt.Errorf("boom")).
		Info("chained fields")

	output := buf.String()
	for _, want := range []string{`"entry":"Algorithms"`, `"group":"Assignment1"`, `"files":2`, `"error":"boom"`, "chained fields"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %s missing %s", output, want)
		}
	}
}

func TestWithFieldDoesNotLeakToParent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	_ = logger.WithField("child", true)
	logger.Info("parent")

	assert.NotContains(t, buf.String(), "child")
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("typed", map[string]interface{}{
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"when":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"custom":   struct{ Name string }{Name: "x"},
	})

	output := buf.String()
	assert.Contains(t, output, `"strings":["a","b"]`)
	assert.Contains(t, output, `"custom":{"Name":"x"}`)
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://portal/my/", 200, 10*time.Millisecond)
	LogRequest(tl, "GET", "https://portal/missing", 404, time.Millisecond)
	LogRequest(tl, "GET", "https://portal/down", 503, time.Millisecond)
	LogDownload(tl, "Algorithms", "Assignment1", "A.pdf", nil)
	LogDownload(tl, "Algorithms", "Assignment1", "B.pdf", fmt.Errorf("403"))
	LogStage(tl, "DISCOVER", nil)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	assert.True(t, tl.HasMessage("Download staged"))

	stage := tl.GetMessagesByLevel("INFO")
	require.Len(t, stage, 2)
	assert.Equal(t, "DISCOVER", stage[1].Fields["stage"])
}

func TestTestLoggerSharesStoreAcrossChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("entry", "A").WithError(fmt.Errorf("x"))
	child.Warn("skipped")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "A", msgs[0].Fields["entry"])
	assert.EqualError(t, msgs[0].Error, "x")
	assert.Contains(t, tl.String(), "[WARN] skipped")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("hello")
	WithField("k", "v").Warn("with field")

	assert.True(t, tl.HasMessage("hello"))
	assert.True(t, tl.HasMessage("with field"))
}

func TestNopLogger(t *testing.T) {
	n := NewNopLogger()
	n.WithField("a", 1).WithError(fmt.Errorf("x")).Error("ignored")
	assert.NotNil(t, n.GetZerolog())
}
