package tcpserver

import (
	"testing"
	"time"

	"github.com/fbnet-go/fbnet"
	fbnetsocket "github.com/fbnet-go/fbnet/internal/socket"
)

type echoConnection struct {
	*BaseConnection
}

func newEchoConnection(client *fbnet.TcpClient, addr fbnet.Address) Connection {
	c := &echoConnection{BaseConnection: NewBaseConnection(client, addr)}
	return c
}

func (c *echoConnection) Run() {
	c.Start(func() {
		buf := make([]byte, 64)
		for !c.StopRequested() {
			n, err := c.Recv(buf)
			if err != nil {
				if fbnetsocket.IsWouldBlock(err) {
					continue
				}
				return
			}
			if n == 0 {
				return
			}
			if _, err := c.Send(buf[:n]); err != nil {
				return
			}
		}
	})
}

func TestTcpServerEcho(t *testing.T) {
	listener := fbnet.NewServerSocket()
	addr, _ := fbnet.NewAddress(fbnet.IPv4, "127.0.0.1", 0)
	if err := listener.Bind(addr); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := listener.Listen(16); err != nil {
		t.Fatalf("listen: %v", err)
	}
	bound := listener.LocalAddress()

	srv := New(listener, newEchoConnection)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	client := fbnet.NewTcpClient()
	if err := client.ConnectWithTimeout(bound, 2*time.Second); err != nil {
		t.Fatalf("client connect: %v", err)
	}

	if _, err := client.SendBytesAll([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	reply := make([]byte, 5)
	n, err := client.RecvBytesExact(reply)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if n != 5 || string(reply) != "hello" {
		t.Fatalf("expected echo %q, got %q (n=%d)", "hello", reply, n)
	}

	if got := srv.TotalConnections(); got != 1 {
		t.Fatalf("expected total_connections 1, got %d", got)
	}

	_ = client.Close()
	time.Sleep(50 * time.Millisecond)

	if err := srv.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := srv.ActiveConnections(); got != 0 {
		t.Fatalf("expected 0 active connections after stop, got %d", got)
	}
}

func TestTcpServerIdleTimeout(t *testing.T) {
	listener := fbnet.NewServerSocket()
	addr, _ := fbnet.NewAddress(fbnet.IPv4, "127.0.0.1", 0)
	if err := listener.Bind(addr); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := listener.Listen(16); err != nil {
		t.Fatalf("listen: %v", err)
	}
	bound := listener.LocalAddress()

	srv := New(listener, newEchoConnection)
	if err := srv.SetIdleTimeout(100 * time.Millisecond); err != nil {
		t.Fatalf("set idle timeout: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop(2 * time.Second)

	client := fbnet.NewTcpClient()
	if err := client.ConnectWithTimeout(bound, 2*time.Second); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer client.Close()

	// Never send anything; the server should stop the connection once it
	// has sat idle past the configured timeout.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.ActiveConnections() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("expected idle connection to be stopped, still active after deadline")
}
