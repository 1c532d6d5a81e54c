package poll

import (
	"net"
	"testing"
	"time"
)

func socketpairTCP(t *testing.T) (a, b *net.TCPConn, close func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-accepted
	return client.(*net.TCPConn), server.(*net.TCPConn), func() {
		_ = client.Close()
		_ = server.Close()
		_ = ln.Close()
	}
}

func fdOf(t *testing.T, c *net.TCPConn) int {
	t.Helper()
	raw, err := c.SyscallConn()
	if err != nil {
		t.Fatalf("syscallconn: %v", err)
	}
	var fd int
	_ = raw.Control(func(f uintptr) { fd = int(f) })
	return fd
}

func TestPollSetDetectsReadable(t *testing.T) {
	client, server, closeAll := socketpairTCP(t)
	defer closeAll()

	set, err := New()
	if err != nil {
		t.Fatalf("new poll set: %v", err)
	}
	defer set.Close()

	sfd := fdOf(t, server)
	if err := set.Add(sfd, Read); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := client.Write([]byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := set.Poll(time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one ready event")
	}
	found := false
	for _, ev := range set.Events() {
		if ev.Fd == sfd && ev.Mode&Read != 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected server fd to be reported readable")
	}
}

func TestPollSetSizeAndRemove(t *testing.T) {
	client, server, closeAll := socketpairTCP(t)
	defer closeAll()

	set, err := New()
	if err != nil {
		t.Fatalf("new poll set: %v", err)
	}
	defer set.Close()

	cfd, sfd := fdOf(t, client), fdOf(t, server)
	_ = set.Add(cfd, Read)
	_ = set.Add(sfd, Read|Write)

	if set.Size() != 2 {
		t.Fatalf("expected size 2, got %d", set.Size())
	}
	if set.Empty() {
		t.Fatal("expected non-empty")
	}
	if got, ok := set.GetMode(sfd); !ok || got != Read|Write {
		t.Fatalf("expected Read|Write, got %v (ok=%v)", got, ok)
	}

	_ = set.Remove(sfd)
	if set.Has(sfd) {
		t.Fatal("expected sfd removed")
	}
	if set.Size() != 1 {
		t.Fatalf("expected size 1 after remove, got %d", set.Size())
	}
}

func TestPollSetTimeoutReturnsZero(t *testing.T) {
	_, server, closeAll := socketpairTCP(t)
	defer closeAll()

	set, err := New()
	if err != nil {
		t.Fatalf("new poll set: %v", err)
	}
	defer set.Close()

	_ = set.Add(fdOf(t, server), Read)
	n, err := set.Poll(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected zero ready events on idle socket, got %d", n)
	}
}

func TestPollSetReportsBackendName(t *testing.T) {
	set, err := New()
	if err != nil {
		t.Fatalf("new poll set: %v", err)
	}
	defer set.Close()
	if set.Backend() == "" {
		t.Fatal("expected non-empty backend name")
	}
}
