package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}
	if m.GroupReadsTotal == nil {
		t.Error("GroupReadsTotal should not be nil")
	}
	if m.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}
	if m.TransDataEmitted == nil {
		t.Error("TransDataEmitted should not be nil")
	}
}

func TestRecordNodeStateChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordNodeStateChange("d1", "init", "ready")
	m.RecordNodeStateChange("d1", "ready", "running")
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordError("NODE_NOT_EXIST")
	m.RecordError("EINTERNAL")
}

func TestRecordGroupRead(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordGroupRead("d1", "g1", "ok", 5*time.Millisecond)
	m.RecordGroupRead("d1", "g1", "error", 1*time.Millisecond)
}

func TestRecordTransData(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordTransData("d1", "g1")
	m.RecordTransData("d1", "g1")
}

func TestRecordCacheStale(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordCacheStale("d1", "g1")
}

func TestRecordWriteRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordWriteRequest("d1", "ok")
	m.RecordWriteRequest("d1", "error")
}

func TestQueueMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordQueueDrop("d1")
	m.SetQueueDepth("d1", 42)
	m.SetQueueDepth("d1", 0)
}

func TestRecordPersistenceQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.RecordPersistenceQuery("store_tag", "ok", 2*time.Millisecond)
	m.RecordPersistenceQuery("load_tags", "error", 1*time.Millisecond)
}

func TestUpdateUptime(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)
	startTime := time.Now().Add(-1 * time.Hour)

	m.UpdateUptime(startTime)
}

func TestSetNodeCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	m.SetNodeCount("running", 3)
	m.SetNodeCount("stopped", 1)
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-gateway", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metricFamilies) == 0 {
		t.Error("Expected metrics to be registered")
	}
}
