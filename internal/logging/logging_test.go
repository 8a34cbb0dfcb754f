package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestUntilMidnight(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("test", 2*3600)
	tests := []struct {
		at   time.Time
		want time.Duration
	}{
		{time.Date(2024, 3, 1, 23, 30, 0, 0, loc), 30 * time.Minute},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, loc), 24 * time.Hour},
		{time.Date(2024, 12, 31, 12, 0, 0, 0, loc), 12 * time.Hour},
	}
	for _, tt := range tests {
		if got := untilMidnight(tt.at); got != tt.want {
			t.Fatalf("untilMidnight(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"PACIFIC DEBT": "pacific_debt.log",
		"leadetl":      "leadetl.log",
		"":             "leadetl.log",
	} {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_WritesConsoleAndFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	l, err := New(Options{Dir: dir, Name: "Lead ETL", Level: logrus.InfoLevel, Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.WithField("stage", "format_pdr").Info("pipeline: stage done")
	l.Debug("hidden")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if want := filepath.Join(dir, "lead_etl.log"); l.Path() != want {
		t.Fatalf("Path = %q, want %q", l.Path(), want)
	}
	b, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, out := range []string{string(b), console.String()} {
		if !strings.Contains(out, "pipeline: stage done") || !strings.Contains(out, "stage=format_pdr") {
			t.Fatalf("missing line in %q", out)
		}
		if strings.Contains(out, "hidden") {
			t.Fatalf("debug line written at info level: %q", out)
		}
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	t.Parallel()
	var console bytes.Buffer
	l, err := New(Options{Level: logrus.DebugLevel, Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("visible")
	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Path() != "" {
		t.Fatalf("Path = %q, want empty", l.Path())
	}
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("console = %q", console.String())
	}
}

func TestRotate_StartsNewFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Name: "rot", Level: logrus.InfoLevel, Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	l.Info("before")
	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	l.Info("after")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("files = %d, want 2 (active + rotated)", len(entries))
	}
	b, _ := os.ReadFile(l.Path())
	if strings.Contains(string(b), "before") || !strings.Contains(string(b), "after") {
		t.Fatalf("active file = %q", b)
	}
}
