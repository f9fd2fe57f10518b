package control

import (
	"testing"
	"time"
)

func TestNewConfigStoreSeedsHandshakeDefaults(t *testing.T) {
	cs := NewConfigStore()
	if v := cs.Int(KeyClientConnectWaitMs, -1); v != 100 {
		t.Fatalf("KeyClientConnectWaitMs = %d, want 100", v)
	}
	if v := cs.Int(KeyMaxHandshakeLen, -1); v != 4096 {
		t.Fatalf("KeyMaxHandshakeLen = %d, want 4096", v)
	}
}

func TestConfigStoreIntFallsBackOnMissingOrWrongType(t *testing.T) {
	cs := NewConfigStore()
	if v := cs.Int("nonexistent", 42); v != 42 {
		t.Fatalf("Int(missing) = %d, want fallback 42", v)
	}
	cs.SetConfig(map[string]any{"str-key": "not an int"})
	if v := cs.Int("str-key", 7); v != 7 {
		t.Fatalf("Int(wrong-type) = %d, want fallback 7", v)
	}
}

func TestConfigStoreSetConfigMergesAndNotifies(t *testing.T) {
	cs := NewConfigStore()
	done := make(chan struct{}, 1)
	cs.OnReload(func() { done <- struct{}{} })

	cs.SetConfig(map[string]any{KeyClientSendWaitMs: 250})
	if v := cs.Int(KeyClientSendWaitMs, -1); v != 250 {
		t.Fatalf("KeyClientSendWaitMs = %d, want 250", v)
	}
	// Untouched keys survive the merge.
	if v := cs.Int(KeyMaxHandshakeLen, -1); v != 4096 {
		t.Fatalf("KeyMaxHandshakeLen = %d after unrelated SetConfig, want unchanged 4096", v)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnReload listener was not invoked")
	}
}

func TestConfigStoreGetSnapshotIsACopy(t *testing.T) {
	cs := NewConfigStore()
	snap := cs.GetSnapshot()
	snap[KeyMaxHandshakeLen] = 0

	if v := cs.Int(KeyMaxHandshakeLen, -1); v != 4096 {
		t.Fatalf("mutating a snapshot leaked into the store: KeyMaxHandshakeLen = %d", v)
	}
}
