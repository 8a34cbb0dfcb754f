package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"leadetl/internal/metrics"
)

type gateway struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	g.method, g.path, g.body = r.Method, r.URL.Path, string(b)
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func TestFlush_PushesJobGroup(t *testing.T) {
	t.Parallel()
	g := &gateway{}
	srv := httptest.NewServer(g)
	defer srv.Close()

	b, err := NewBackend("leadetl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "format_pdr", "status": "ok"})
	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "dropped_invalid_reference_id"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 2.5, metrics.Labels{"step": "format_pdr", "status": "ok"})
	b.ObserveHistogram(metrics.SnapshotRows, 40, metrics.Labels{"snapshot": "pdr"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.method != http.MethodPut {
		t.Fatalf("method=%s, want PUT", g.method)
	}
	if g.path != "/metrics/job/leadetl" {
		t.Fatalf("path=%s", g.path)
	}
	for _, name := range []string{metrics.StepTotal, metrics.RecordsTotal, metrics.StepDurationSeconds, metrics.SnapshotRows, "dropped_invalid_reference_id"} {
		if !strings.Contains(g.body, name) {
			t.Fatalf("pushed body lacks %q", name)
		}
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("leadetl", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("expected push error")
	}
}

func TestNewBackend_Validates(t *testing.T) {
	t.Parallel()
	if _, err := NewBackend("", "http://localhost:9091"); err == nil {
		t.Fatalf("expected error for empty job")
	}
	if _, err := NewBackend("job", " "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
