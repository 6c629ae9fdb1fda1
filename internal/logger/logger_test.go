package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, &buf, FormatJSON)

	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "test message",
			fields:  Fields{"key": "value"},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "debug message",
			want:    false, // won't log (below INFO)
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "error occurred",
			err:     errors.New("test error"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := buf.Len()

			logger.log(tt.level, tt.message, tt.fields, tt.err)

			logged := buf.Len() > before
			if logged != tt.want {
				t.Errorf("log() logged = %v, want %v", logged, tt.want)
			}
		})
	}
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf, FormatJSON)

	logger.Error("registration failed", Fields{"step": "continue", "attempt": 2}, errors.New("not clickable"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v (line %q)", err, buf.String())
	}

	if entry["message"] != "registration failed" {
		t.Errorf("message = %v, want %q", entry["message"], "registration failed")
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if entry["error"] != "not clickable" {
		t.Errorf("error = %v, want %q", entry["error"], "not clickable")
	}
	if entry["step"] != "continue" {
		t.Errorf("step = %v, want continue", entry["step"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp")
	}
}

func TestLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, &buf, FormatConsole)

	logger.Info("Waiting for event to be published", Fields{"rule": "bootcamp"})

	out := buf.String()
	if !strings.Contains(out, "Waiting for event to be published") {
		t.Errorf("console output missing message: %q", out)
	}
	if !strings.Contains(out, "bootcamp") {
		t.Errorf("console output missing field: %q", out)
	}
}

func TestLogger_PrintfHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, &buf, FormatJSON)

	logger.Printf("frame %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("Printf logged at info level: %s", buf.String())
	}

	logger.Warnf("could not unmarshal event: %s", "bad frame")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON entry %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["message"] != "could not unmarshal event: bad frame" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"debug", "INFO", " warn ", "Error"} {
		if _, err := ParseLevel(in); err != nil {
			t.Errorf("ParseLevel(%q) error = %v", in, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) expected error")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) expected error")
	}
}

func TestMetrics_Counter(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter("test_counter")
	m.IncrCounter("test_counter")
	m.IncrCounter("test_counter")

	snapshot := m.GetSnapshot()
	counters := snapshot["counters"].(map[string]int64)

	if counters["test_counter"] != 3 {
		t.Errorf("Counter = %v, want 3", counters["test_counter"])
	}
	if m.Counter("test_counter") != 3 {
		t.Errorf("Counter() = %v, want 3", m.Counter("test_counter"))
	}
}

func TestMetrics_Gauge(t *testing.T) {
	m := NewMetrics()

	m.SetGauge("attempt", 1)
	m.SetGauge("attempt", 2)

	snapshot := m.GetSnapshot()
	gauges := snapshot["gauges"].(map[string]float64)

	if gauges["attempt"] != 2 {
		t.Errorf("Gauge = %v, want 2", gauges["attempt"])
	}
}

func TestMetrics_Timing(t *testing.T) {
	m := NewMetrics()

	m.RecordTiming("discovery.poll", 100*time.Millisecond)
	m.RecordTiming("discovery.poll", 200*time.Millisecond)
	m.RecordTiming("discovery.poll", 150*time.Millisecond)

	snapshot := m.GetSnapshot()
	timings := snapshot["timings"].(map[string]map[string]interface{})

	poll := timings["discovery.poll"]
	if poll["count"].(int) != 3 {
		t.Errorf("Timing count = %v, want 3", poll["count"])
	}
	if poll["min"].(string) != "100ms" {
		t.Errorf("Min timing = %v, want 100ms", poll["min"])
	}
	if poll["max"].(string) != "200ms" {
		t.Errorf("Max timing = %v, want 200ms", poll["max"])
	}
}

func TestMetrics_Fields(t *testing.T) {
	m := NewMetrics()
	m.IncrCounter("discovery.polls")
	m.RecordTiming("register.attempt", 2*time.Second)

	fields := m.Fields()
	if fields["discovery.polls"] != int64(1) {
		t.Errorf("discovery.polls = %v, want 1", fields["discovery.polls"])
	}
	if fields["register.attempt.count"] != 1 {
		t.Errorf("register.attempt.count = %v, want 1", fields["register.attempt.count"])
	}
	if fields["register.attempt.avg"] != "2s" {
		t.Errorf("register.attempt.avg = %v, want 2s", fields["register.attempt.avg"])
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(LevelDebug, &buf, FormatJSON))
	defer SetDefault(prev)

	Debug("test debug", nil)
	Info("test info", Fields{"key": "value"})
	Warn("test warning", nil)
	Error("test error", Fields{"component": "test"}, errors.New("test"))

	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("logged %d lines, want 4", got)
	}

	IncrCounter("test")
	SetGauge("test", 42.0)
	RecordTiming("test", time.Second)

	snapshot := GetMetricsSnapshot()
	if snapshot == nil {
		t.Error("GetMetricsSnapshot() returned nil")
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"info logs at debug", LevelDebug, LevelInfo, true},
		{"debug doesn't log at info", LevelInfo, LevelDebug, false},
		{"warn doesn't log at error", LevelError, LevelWarn, false},
		{"error always logs", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.minLevel, &buf, FormatJSON)

			logger.log(tt.logLevel, "test", nil, nil)

			logged := buf.Len() > 0
			if logged != tt.shouldLog {
				t.Errorf("shouldLog = %v, want %v", logged, tt.shouldLog)
			}
		})
	}
}
