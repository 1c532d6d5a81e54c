package config

import (
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	cfg, err := Decode(`
max_threads = 50
max_queued = 200
connection_timeout = "5s"
idle_timeout = "30s"
`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.MaxThreads != 50 {
		t.Fatalf("expected max_threads 50, got %d", cfg.MaxThreads)
	}
	if cfg.MaxQueued != 200 {
		t.Fatalf("expected max_queued 200, got %d", cfg.MaxQueued)
	}
	if cfg.ConnectionTimeout.Std() != 5*time.Second {
		t.Fatalf("expected connection_timeout 5s, got %v", cfg.ConnectionTimeout.Std())
	}
	if cfg.IdleTimeout.Std() != 30*time.Second {
		t.Fatalf("expected idle_timeout 30s, got %v", cfg.IdleTimeout.Std())
	}
}

func TestDecodeZeroValuesMeanUseDefault(t *testing.T) {
	cfg, err := Decode(``)
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if cfg.MaxThreads != 0 || cfg.MaxQueued != 0 {
		t.Fatalf("expected zero-value config, got %+v", cfg)
	}
}
