package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/objectfs/jailstore/pkg/errors"
)

// codeOK labels operations that returned no error.
const codeOK = "OK"

// Collector records storage operations into a private prometheus registry
// and keeps a per-operation summary for GetMetrics.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry
	logger   *slog.Logger

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesCounter      *prometheus.CounterVec

	operations map[string]*OperationMetrics
	lastReset  time.Time

	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count         int64            `json:"count"`
	Errors        int64            `json:"errors"`
	Codes         map[string]int64 `json:"codes"`
	TotalDuration time.Duration    `json:"total_duration"`
	TotalBytes    int64            `json:"total_bytes"`
	LastOperation time.Time        `json:"last_operation"`
	AvgDuration   time.Duration    `json:"avg_duration"`
}

// Snapshot is the point-in-time view returned by GetMetrics.
type Snapshot struct {
	Operations map[string]OperationMetrics `json:"operations"`
	LastReset  time.Time                   `json:"last_reset"`
	Uptime     time.Duration               `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config, logger *slog.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "jailstore",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := &Collector{
		config:     config,
		logger:     logger.With("component", "metrics"),
		operations: make(map[string]*OperationMetrics),
		lastReset:  time.Now(),
	}
	if !config.Enabled {
		return collector, nil
	}

	collector.registry = prometheus.NewRegistry()
	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Enabled reports whether operations are being recorded.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registry exposes the underlying registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry plus a JSON summary under /debug/operations.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	if c.registry != nil {
		mux.Handle(c.path(), promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)
	return mux
}

// Start serves Handler on the configured port until Stop is called.
func (c *Collector) Start(_ context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server stopped", "addr", c.server.Addr, "error", err)
		}
	}()

	c.logger.Info("metrics endpoint started", "addr", c.server.Addr, "path", c.path())
	return nil
}

// Stop stops the metrics collection server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one backend call. The code label is the error
// code of err, or OK.
func (c *Collector) RecordOperation(operation string, duration time.Duration, size int64, err error) {
	if !c.config.Enabled {
		return
	}

	code := codeOK
	if err != nil {
		code = string(errors.CodeOf(err))
	}

	c.mu.Lock()
	metrics, exists := c.operations[operation]
	if !exists {
		metrics = &OperationMetrics{Codes: make(map[string]int64)}
		c.operations[operation] = metrics
	}
	metrics.Count++
	metrics.Codes[code]++
	if err != nil {
		metrics.Errors++
	}
	metrics.TotalDuration += duration
	metrics.TotalBytes += size
	metrics.LastOperation = time.Now()
	metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
	c.mu.Unlock()

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"code":      code,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())

	if size > 0 {
		c.bytesCounter.With(prometheus.Labels{
			"operation": operation,
		}).Add(float64(size))
	}
}

// GetMetrics returns current metrics
func (c *Collector) GetMetrics() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	operations := make(map[string]OperationMetrics, len(c.operations))
	for name, op := range c.operations {
		copied := *op
		copied.Codes = make(map[string]int64, len(op.Codes))
		for code, n := range op.Codes {
			copied.Codes[code] = n
		}
		operations[name] = copied
	}

	return Snapshot{
		Operations: operations,
		LastReset:  c.lastReset,
		Uptime:     time.Since(c.lastReset),
	}
}

// ResetMetrics clears the summary. Prometheus counters are not reset.
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*OperationMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) path() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}

func (c *Collector) initMetrics() {
	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "operations_total",
			Help:      "Total number of storage operations by result code",
		},
		[]string{"operation", "code"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of storage operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
		},
		[]string{"operation"},
	)

	c.bytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "bytes_total",
			Help:      "File content bytes read or written",
		},
		[]string{"operation"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.bytesCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"jailstore-metrics"}`))
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.GetMetrics()); err != nil {
		c.logger.Warn("failed to encode operations summary", "error", err)
	}
}
