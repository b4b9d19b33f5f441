// Package telemetry exposes Prometheus metrics for the EMR server: HTTP
// request metrics, record and pipeline counters, host gauges sampled with
// gopsutil, and the /metrics and /health endpoints.
package telemetry

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Config holds the telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "emr-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// Provider owns a private Prometheus registry and the collectors registered
// on it.
type Provider struct {
	cfg      Config
	registry *prometheus.Registry
	started  time.Time

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeRequests prometheus.Gauge

	recordOps     *prometheus.CounterVec
	externalCalls *prometheus.CounterVec
	externalDur   *prometheus.HistogramVec
	voiceSessions prometheus.Gauge
	xrayFindings  *prometheus.CounterVec

	cpuUsage    *prometheus.GaugeVec
	memoryUsage *prometheus.GaugeVec
}

func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()

	p := &Provider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		started:  time.Now(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of in-flight HTTP requests",
		}),

		recordOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_record_operations_total",
			Help: "Record operations by entity, operation and result",
		}, []string{"entity", "op", "result"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_external_calls_total",
			Help: "Calls to external inference services by service and outcome",
		}, []string{"service", "outcome"}),
		externalDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emr_external_call_duration_seconds",
			Help:    "Latency of calls to external inference services",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service"}),
		voiceSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emr_voice_sessions_active",
			Help: "Number of active voice transcription sessions",
		}),
		xrayFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_xray_findings_total",
			Help: "X-ray findings recorded by severity",
		}, []string{"severity"}),

		cpuUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		}, []string{"core"}),
		memoryUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		}, []string{"type"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requests, p.duration, p.activeRequests,
		p.recordOps, p.externalCalls, p.externalDur, p.voiceSessions, p.xrayFindings,
		p.cpuUsage, p.memoryUsage,
	)
	return p
}

// Registry exposes the registry so other packages can register collectors,
// such as the database pool gauges.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// MetricsMiddleware records request count, latency and in-flight requests
// keyed by the route pattern rather than the raw path.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.MetricsEnabled {
				return next(c)
			}

			p.activeRequests.Inc()
			start := time.Now()

			err := next(c)

			p.activeRequests.Dec()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = http.StatusInternalServerError
				}
			}
			code := strconv.Itoa(status)

			p.requests.WithLabelValues(c.Request().Method, route, code).Inc()
			p.duration.WithLabelValues(c.Request().Method, route, code).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordOperation counts a record service call; result is "ok" or "error".
func (p *Provider) RecordOperation(entity, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.recordOps.WithLabelValues(entity, op, result).Inc()
}

// ObserveExternalCall records one call to service (pathology, llm, whisper,
// stt-cloud).
func (p *Provider) ObserveExternalCall(service string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.externalCalls.WithLabelValues(service, outcome).Inc()
	p.externalDur.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

func (p *Provider) SetVoiceSessions(n int) {
	p.voiceSessions.Set(float64(n))
}

func (p *Provider) CountFinding(severity string) {
	p.xrayFindings.WithLabelValues(severity).Inc()
}

// RunSystemCollector samples CPU and memory every interval until ctx is done.
func (p *Provider) RunSystemCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.sampleSystem()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sampleSystem()
		}
	}
}

func (p *Provider) sampleSystem() {
	if percents, err := cpu.Percent(0, true); err == nil {
		for i, pct := range percents {
			p.cpuUsage.WithLabelValues(strconv.Itoa(i)).Set(pct)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		p.memoryUsage.WithLabelValues("total").Set(float64(vm.Total))
		p.memoryUsage.WithLabelValues("used").Set(float64(vm.Used))
		p.memoryUsage.WithLabelValues("available").Set(float64(vm.Available))
	}
}

// SystemStats is the host summary reported by /health.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
}

func CollectSystemStats() SystemStats {
	stats := SystemStats{Goroutines: runtime.NumGoroutine()}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	return stats
}

// HealthHandler answers liveness probes with service identity, uptime and
// host statistics.
func (p *Provider) HealthHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     p.cfg.ServiceName,
			"version":     p.cfg.ServiceVersion,
			"environment": p.cfg.Environment,
			"uptime":      time.Since(p.started).Round(time.Second).String(),
			"system":      CollectSystemStats(),
		})
	}
}
