// Package datadog submits pipeline metrics to Datadog.
//
// Events are folded into a window that is submitted every FlushEvery and
// once more on Close. Each stage runs once per pipeline run, so a window
// reports per-stage totals rather than latency distributions.
package datadog

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"leadetl/internal/metrics"
)

// Submitted metric names.
const (
	MetricStageRuns    = "leadetl.stage.runs"
	MetricStageSeconds = "leadetl.stage.seconds"
	MetricRecords      = "leadetl.records"
	MetricSnapshotRows = "leadetl.snapshot.rows"
)

// Options configure NewBackend.
type Options struct {
	// JobName is sent as tag job:<name>. Defaults to "leadetl".
	JobName string
	// Tags are added to every series, e.g. "service:leads".
	Tags []string
	// FlushEvery defaults to one minute.
	FlushEvery time.Duration

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

// submitter is the part of *datadogV2.MetricsApi the backend calls.
type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

type stageKey struct{ stage, status string }

// window accumulates the events between two submissions.
type window struct {
	runs    map[stageKey]float64
	seconds map[stageKey]float64
	records map[string]float64
	rows    map[string]float64 // last row count per snapshot
}

func newWindow() *window {
	return &window{
		runs:    map[stageKey]float64{},
		seconds: map[stageKey]float64{},
		records: map[string]float64{},
		rows:    map[string]float64{},
	}
}

func (w *window) empty() bool {
	return len(w.runs)+len(w.seconds)+len(w.records)+len(w.rows) == 0
}

// Backend implements metrics.Backend.
type Backend struct {
	api   submitter
	ctx   context.Context
	every time.Duration
	tags  []string
	now   func() time.Time

	stop chan struct{}
	done chan struct{}

	mu  sync.Mutex
	win *window
}

// NewBackend starts a backend that reads DD_API_KEY and DD_SITE through the
// Datadog client. Network failures surface from Flush and Close.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	every := opts.FlushEvery
	if every <= 0 {
		every = time.Minute
	}
	api := opts.submitter
	if api == nil {
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	tick := opts.newTicker
	if tick == nil {
		tick = time.NewTicker
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	b := &Backend{
		api:   api,
		ctx:   dd.NewDefaultContext(parent),
		every: every,
		tags:  append([]string{envTag(), "job:" + cmp.Or(opts.JobName, "leadetl")}, opts.Tags...),
		now:   now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		win:   newWindow(),
	}
	go b.loop(tick(every))
	return b, nil
}

// envTag is env:<ENV>, falling back to DD_ENV and then "unknown".
func envTag() string {
	return "env:" + cmp.Or(strings.TrimSpace(os.Getenv("ENV")), strings.TrimSpace(os.Getenv("DD_ENV")), "unknown")
}

func (b *Backend) loop(t *time.Ticker) {
	defer close(b.done)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stop:
			return
		}
	}
}

// Close stops the periodic flush and submits what is left. Call it once.
func (b *Backend) Close() error {
	close(b.stop)
	<-b.done
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch name {
	case metrics.StepTotal:
		b.win.runs[stageKey{labels["step"], labels["status"]}] += delta
	case metrics.RecordsTotal:
		if kind := labels["kind"]; kind != "" {
			b.win.records[kind] += delta
		}
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch name {
	case metrics.StepDurationSeconds:
		b.win.seconds[stageKey{labels["step"], labels["status"]}] += value
	case metrics.SnapshotRows:
		b.win.rows[cmp.Or(labels["snapshot"], "unknown")] = value
	}
}

// Flush submits the current window and starts a new one. The window is
// discarded even when the submission fails.
func (b *Backend) Flush() error {
	b.mu.Lock()
	w := b.win
	b.win = newWindow()
	b.mu.Unlock()

	if w.empty() {
		return nil
	}
	body := datadogV2.MetricPayload{Series: b.series(w, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, body, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog: submit: %w", err)
	}
	return nil
}

// series renders a window in a stable order.
func (b *Backend) series(w *window, ts int64) []datadogV2.MetricSeries {
	var out []datadogV2.MetricSeries
	point := func(metric string, typ datadogV2.MetricIntakeType, v float64, extra ...string) {
		out = append(out, datadogV2.MetricSeries{
			Metric: metric,
			Type:   typ.Ptr(),
			Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
			Tags:   slices.Concat(b.tags, extra),
		})
	}

	for _, k := range sortedStages(w.runs) {
		point(MetricStageRuns, datadogV2.METRICINTAKETYPE_COUNT, w.runs[k], "stage:"+k.stage, "status:"+k.status)
	}
	for _, k := range sortedStages(w.seconds) {
		point(MetricStageSeconds, datadogV2.METRICINTAKETYPE_GAUGE, w.seconds[k], "stage:"+k.stage, "status:"+k.status)
	}
	for _, kind := range slices.Sorted(maps.Keys(w.records)) {
		point(MetricRecords, datadogV2.METRICINTAKETYPE_COUNT, w.records[kind], "kind:"+kind)
	}
	for _, snap := range slices.Sorted(maps.Keys(w.rows)) {
		point(MetricSnapshotRows, datadogV2.METRICINTAKETYPE_GAUGE, w.rows[snap], "snapshot:"+snap)
	}
	return out
}

func sortedStages(m map[stageKey]float64) []stageKey {
	return slices.SortedFunc(maps.Keys(m), func(a, b stageKey) int {
		return cmp.Or(cmp.Compare(a.stage, b.stage), cmp.Compare(a.status, b.status))
	})
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV splits "env:prod, service:leads" into tags, dropping blanks.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WrapInitErr prefixes a backend construction error.
func WrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
