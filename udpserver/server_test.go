package udpserver

import (
	"sync"
	"testing"
	"time"

	"github.com/fbnet-go/fbnet"
)

type recordingHandler struct {
	*BaseHandler
	mu       sync.Mutex
	payloads []string
}

func newRecordingHandler() *recordingHandler {
	h := &recordingHandler{}
	h.BaseHandler = NewBaseHandler(h)
	return h
}

func (h *recordingHandler) HandlePacket(data PacketData) error {
	h.mu.Lock()
	h.payloads = append(h.payloads, string(data.Buffer))
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.payloads))
	copy(out, h.payloads)
	return out
}

func TestUdpServerPing(t *testing.T) {
	serverSocket := fbnet.NewUdpSocket()
	addr, _ := fbnet.NewAddress(fbnet.IPv4, "127.0.0.1", 0)
	if err := serverSocket.Bind(addr); err != nil {
		t.Fatalf("bind: %v", err)
	}
	bound := serverSocket.LocalAddress()

	handler := newRecordingHandler()
	srv := NewWithHandler(serverSocket, handler)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	client := fbnet.NewUdpSocket()
	clientAddr, _ := fbnet.NewAddress(fbnet.IPv4, "127.0.0.1", 0)
	if err := client.Bind(clientAddr); err != nil {
		t.Fatalf("client bind: %v", err)
	}

	payloads := []string{"ping#1", "ping#2", "ping#3", "ping#4", "ping#5"}
	for _, p := range payloads {
		if _, err := client.SendTo([]byte(p), bound); err != nil {
			t.Fatalf("send: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if got := srv.TotalReceived(); got != 5 {
		t.Fatalf("expected total_received 5, got %d", got)
	}
	if got := srv.TotalProcessed(); got != 5 {
		t.Fatalf("expected processed 5, got %d", got)
	}
	if got := srv.TotalDropped(); got != 0 {
		t.Fatalf("expected dropped 0, got %d", got)
	}

	got := handler.snapshot()
	if len(got) != len(payloads) {
		t.Fatalf("expected %d payloads, got %d: %v", len(payloads), len(got), got)
	}
	for i, p := range payloads {
		if got[i] != p {
			t.Fatalf("expected payload %d to be %q, got %q", i, p, got[i])
		}
	}

	_ = client.Close()
	if err := srv.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
