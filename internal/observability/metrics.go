package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

// Metrics holds the process counters exposed in Prometheus text format.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests *Family
	apiLatency  *Histogram
	apiInflight *Family
	llmRequests *Family
	llmLatency  *Histogram
	llmTokens   *Family
	dbPool      *Family
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

func Current() *Metrics { return instance }

// Init creates the process-wide registry when METRICS_ENABLED is set.
func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

func NewMetrics() *Metrics {
	latency := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	llmLatency := []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120}
	return &Metrics{
		apiRequests: NewFamily("hci_api_requests_total", "API requests by method/route/status.", "counter", "method", "route", "status"),
		apiLatency:  NewHistogram("hci_api_request_duration_seconds", "API request latency by method/route.", latency, "method", "route"),
		apiInflight: NewFamily("hci_api_inflight_requests", "In-flight API requests.", "gauge"),
		llmRequests: NewFamily("hci_llm_requests_total", "Model API requests by model/endpoint/status.", "counter", "model", "endpoint", "status"),
		llmLatency:  NewHistogram("hci_llm_request_duration_seconds", "Model API latency by model/endpoint.", llmLatency, "model", "endpoint"),
		llmTokens:   NewFamily("hci_llm_tokens_total", "Model tokens by model/kind.", "counter", "model", "kind"),
		dbPool:      NewFamily("hci_db_pool", "database/sql pool statistics.", "gauge", "stat"),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Add(1, method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	endpoint = orUnknown(endpoint)
	m.llmRequests.Add(1, model, endpoint, orUnknown(status))
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// RunPostgresCollector samples pool stats until ctx is done.
func (m *Metrics) RunPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) error {
	if m == nil || db == nil {
		return nil
	}
	ticker := time.NewTicker(envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sqlDB, err := db.DB()
			if err != nil {
				if log != nil {
					log.Warn("metrics: db stats unavailable", "error", err)
				}
				continue
			}
			stats := sqlDB.Stats()
			m.dbPool.Set(float64(stats.OpenConnections), "open_connections")
			m.dbPool.Set(float64(stats.InUse), "in_use")
			m.dbPool.Set(float64(stats.Idle), "idle")
			m.dbPool.Set(float64(stats.WaitCount), "wait_count")
			m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			m.dbPool.Set(float64(stats.MaxOpenConnections), "max_open_connections")
		}
	}
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, wr := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.llmRequests, m.llmLatency, m.llmTokens, m.dbPool,
	} {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}

// ---- metric primitives ----

// Family is a labelled counter or gauge.
type Family struct {
	name   string
	help   string
	kind   string
	labels []string
	mu     sync.Mutex
	values map[string]float64
}

func NewFamily(name, help, kind string, labels ...string) *Family {
	return &Family{name: name, help: help, kind: kind, labels: labels, values: map[string]float64{}}
}

func (f *Family) Add(v float64, labelValues ...string) {
	key := labelString(f.labels, labelValues)
	f.mu.Lock()
	f.values[key] += v
	f.mu.Unlock()
}

func (f *Family) Set(v float64, labelValues ...string) {
	key := labelString(f.labels, labelValues)
	f.mu.Lock()
	f.values[key] = v
	f.mu.Unlock()
}

func (f *Family) Value(labelValues ...string) float64 {
	key := labelString(f.labels, labelValues)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

func (f *Family) WritePrometheus(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range sortedKeys(f.values) {
		if _, err := fmt.Fprintf(w, "%s%s %g\n", f.name, k, f.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type Histogram struct {
	name    string
	help    string
	labels  []string
	buckets []float64
	mu      sync.Mutex
	series  map[string]*series
}

type series struct {
	counts []uint64
	sum    float64
	total  uint64
}

func NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	return &Histogram{name: name, help: help, labels: labels, buckets: buckets, series: map[string]*series{}}
}

func (h *Histogram) Observe(v float64, labelValues ...string) {
	key := labelString(h.labels, labelValues)
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.series[key]
	if !ok {
		s = &series{counts: make([]uint64, len(h.buckets))}
		h.series[key] = s
	}
	s.sum += v
	s.total++
	for i, b := range h.buckets {
		if v <= b {
			s.counts[i]++
		}
	}
}

func (h *Histogram) WritePrometheus(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.series))
	for k := range h.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := h.series[k]
		for i, b := range h.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), s.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n%s_sum%s %g\n%s_count%s %d\n",
			h.name, withLe(k, "+Inf"), s.total, h.name, k, s.sum, h.name, k, s.total); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		parts[i] = name + `="` + escapeLabel(val) + `"`
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func escapeLabel(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v)
}

func withLe(labels, le string) string {
	if labels == "" {
		return `{le="` + le + `"}`
	}
	return strings.TrimSuffix(labels, "}") + `,le="` + le + `"}`
}
