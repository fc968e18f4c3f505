package logger

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNormalizedFillsDefaults(t *testing.T) {
	out := InitOptions{}.normalized()

	if out.Level != "info" {
		t.Errorf("Level = %q, want info", out.Level)
	}
	if out.Format != "json" {
		t.Errorf("Format = %q, want json", out.Format)
	}
	if out.ServiceName != "csp2api" {
		t.Errorf("ServiceName = %q, want csp2api", out.ServiceName)
	}
	if !out.Output.ToStdout {
		t.Error("Output.ToStdout should default to true when no output configured")
	}
	if out.Rotation.MaxSizeMB != 100 {
		t.Errorf("Rotation.MaxSizeMB = %d, want 100", out.Rotation.MaxSizeMB)
	}
}

func TestNormalizedKeepsExplicitValues(t *testing.T) {
	in := InitOptions{
		Level:  "DEBUG ",
		Format: "console",
		Output: OutputOptions{ToFile: true, FilePath: "/tmp/x.log"},
	}
	out := in.normalized()

	if out.Level != "debug" {
		t.Errorf("Level = %q, want debug", out.Level)
	}
	if out.Format != "console" {
		t.Errorf("Format = %q, want console", out.Format)
	}
	if out.Output.ToStdout {
		t.Error("ToStdout should stay false when file output is configured")
	}
	if out.Output.FilePath != "/tmp/x.log" {
		t.Errorf("FilePath = %q, want /tmp/x.log", out.Output.FilePath)
	}
}

func TestResolveLogFilePathUsesDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "/data")
	got := resolveLogFilePath("")
	want := filepath.Join("/data", "logs", defaultLogFilename)
	if got != want {
		t.Errorf("resolveLogFilePath() = %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
		ok    bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"INFO", zapcore.InfoLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"nope", zapcore.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLevel(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
