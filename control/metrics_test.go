package control

import "testing"

func TestMetricsRegistrySetAndSnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	if !mr.LastUpdated().IsZero() {
		t.Fatal("LastUpdated should be zero before any Set")
	}

	mr.Set("conns.active", 3)
	snap := mr.GetSnapshot()
	if snap["conns.active"] != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if mr.LastUpdated().IsZero() {
		t.Fatal("LastUpdated should be non-zero after Set")
	}
}

func TestMetricsRegistrySnapshotIsACopy(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("k", 1)
	snap := mr.GetSnapshot()
	snap["k"] = 999

	if v := mr.GetSnapshot()["k"]; v != 1 {
		t.Fatalf("mutating a snapshot leaked into the registry: k = %v", v)
	}
}

func TestRecordConnStatsPublishesAllFourCounters(t *testing.T) {
	mr := NewMetricsRegistry()
	RecordConnStats(mr, "conn.1", 10, 20, 3, 4)

	snap := mr.GetSnapshot()
	want := map[string]any{
		"conn.1.bytesReceived":  int64(10),
		"conn.1.bytesSent":      int64(20),
		"conn.1.framesReceived": int64(3),
		"conn.1.framesSent":     int64(4),
	}
	for k, v := range want {
		if snap[k] != v {
			t.Fatalf("snap[%q] = %v, want %v", k, snap[k], v)
		}
	}
}
