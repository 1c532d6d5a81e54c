package fbnet

import (
	"testing"
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
)

const (
	deadlineShort = 200 * time.Millisecond
	deadlineSlack = 150 * time.Millisecond
)

func TestSocketCoreDoubleInitFails(t *testing.T) {
	c := NewSocketCore()
	if err := c.Init(IPv4, socket.Stream); err != nil {
		t.Fatalf("first init: %v", err)
	}
	defer c.Close()

	err := c.Init(IPv4, socket.Stream)
	if err == nil {
		t.Fatal("expected error on double init")
	}
	if fberr, ok := err.(*errors.Error); !ok || fberr.Kind != errors.Logic {
		t.Fatalf("expected Logic error, got %v", err)
	}
}

func TestSocketCoreClosedSocketRejectsOps(t *testing.T) {
	c := NewSocketCore()
	if err := c.Init(IPv4, socket.Stream); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Close is idempotent.
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.SetKeepAlive(true); err == nil {
		t.Fatal("expected Logic error on closed socket")
	}
}

func TestSocketCoreConnectTimeout(t *testing.T) {
	// 192.0.2.0/24 is TEST-NET-1, guaranteed non-routable.
	addr, err := NewAddress(IPv4, "192.0.2.1", 81)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	c := NewSocketCore()
	defer c.Close()

	start := time.Now()
	connErr := c.ConnectWithTimeout(addr, deadlineShort)
	elapsed := time.Since(start)

	if connErr == nil {
		t.Fatal("expected an error connecting to a non-routable address")
	}
	fberr, ok := connErr.(*errors.Error)
	if ok && fberr.Kind == errors.Timeout {
		if elapsed > deadlineShort+deadlineSlack {
			t.Fatalf("expected timeout within %v+slack, took %v", deadlineShort, elapsed)
		}
	}
}
