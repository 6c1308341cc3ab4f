package metrics

import (
	"context"
	"encoding/json"
	stderr "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/objectfs/jailstore/pkg/errors"
)

func testConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "jailstore",
		Subsystem: "test",
	}
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := testConfig()
		collector, err := NewCollector(config, nil)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.Registry() == nil {
			t.Error("collector.registry is nil")
		}
		if !collector.Enabled() {
			t.Error("collector should be enabled")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil, nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Port != 9090 {
			t.Errorf("default port = %d, want 9090", collector.config.Port)
		}
		if collector.config.Namespace != "jailstore" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "jailstore")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false}, nil)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.Registry() != nil {
			t.Error("disabled collector should not have registry")
		}

		collector.RecordOperation("read", time.Millisecond, 10, nil)
		if len(collector.GetMetrics().Operations) != 0 {
			t.Error("disabled collector should not record operations")
		}
		if err := collector.Start(context.Background()); err != nil {
			t.Errorf("Start() on disabled collector error = %v", err)
		}
	})
}

func TestRecordOperation(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	notFound := errors.NewError(errors.ErrCodePathNotFound, "missing")
	collector.RecordOperation("read", 2*time.Millisecond, 12, nil)
	collector.RecordOperation("read", 4*time.Millisecond, 0, notFound)
	collector.RecordOperation("write", time.Millisecond, 30, nil)
	collector.RecordOperation("write", time.Millisecond, 0, stderr.New("disk on fire"))

	snapshot := collector.GetMetrics()
	read, ok := snapshot.Operations["read"]
	if !ok {
		t.Fatal("read operation not recorded")
	}
	if read.Count != 2 || read.Errors != 1 {
		t.Errorf("read count/errors = %d/%d, want 2/1", read.Count, read.Errors)
	}
	if read.Codes["OK"] != 1 || read.Codes["PATH_NOT_FOUND"] != 1 {
		t.Errorf("read codes = %v", read.Codes)
	}
	if read.AvgDuration != 3*time.Millisecond {
		t.Errorf("read avg duration = %v, want 3ms", read.AvgDuration)
	}
	if read.TotalBytes != 12 {
		t.Errorf("read bytes = %d, want 12", read.TotalBytes)
	}

	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("read", "PATH_NOT_FOUND")); got != 1 {
		t.Errorf("operations_total{read,PATH_NOT_FOUND} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("write", "UNKNOWN")); got != 1 {
		t.Errorf("operations_total{write,UNKNOWN} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.bytesCounter.WithLabelValues("write")); got != 30 {
		t.Errorf("bytes_total{write} = %v, want 30", got)
	}
}

func TestGetMetricsReturnsCopy(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordOperation("mkdir", time.Millisecond, 0, nil)

	snapshot := collector.GetMetrics()
	snapshot.Operations["mkdir"].Codes["OK"] = 99

	if got := collector.GetMetrics().Operations["mkdir"].Codes["OK"]; got != 1 {
		t.Errorf("snapshot mutation leaked into collector: %d", got)
	}
}

func TestResetMetrics(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordOperation("rm", time.Millisecond, 0, nil)
	before := collector.GetMetrics().LastReset

	time.Sleep(time.Millisecond)
	collector.ResetMetrics()

	snapshot := collector.GetMetrics()
	if len(snapshot.Operations) != 0 {
		t.Errorf("operations after reset = %d, want 0", len(snapshot.Operations))
	}
	if !snapshot.LastReset.After(before) {
		t.Error("last reset was not advanced")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordOperation("stats", time.Millisecond, 0, nil)

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	t.Run("metrics", func(t *testing.T) {
		body := get(t, server.URL+"/metrics")
		if !strings.Contains(body, `jailstore_test_operations_total{code="OK",operation="stats"} 1`) {
			t.Errorf("metrics output missing counter:\n%s", body)
		}
	})

	t.Run("health", func(t *testing.T) {
		body := get(t, server.URL+"/health")
		if !strings.Contains(body, "healthy") {
			t.Errorf("health body = %q", body)
		}
	})

	t.Run("operations", func(t *testing.T) {
		var snapshot Snapshot
		if err := json.Unmarshal([]byte(get(t, server.URL+"/debug/operations")), &snapshot); err != nil {
			t.Fatalf("decode operations: %v", err)
		}
		if snapshot.Operations["stats"].Count != 1 {
			t.Errorf("stats count = %d, want 1", snapshot.Operations["stats"].Count)
		}
	})
}

func TestStop_WithoutStart(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	if err := collector.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}
}

func get(t *testing.T, url string) string {
	t.Helper()

	resp, err := http.Get(url) // #nosec G107 -- test server URL
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
