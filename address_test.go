package fbnet

import "testing"

func TestParseAddressRoundTrip(t *testing.T) {
	cases := []string{
		"127.0.0.1:8080",
		"0.0.0.0:0",
		"[::1]:9090",
		"[2001:db8::1]:443",
	}
	for _, endpoint := range cases {
		addr, err := ParseAddress(endpoint)
		if err != nil {
			t.Fatalf("parse %q: %v", endpoint, err)
		}
		if got := addr.String(); got != endpoint {
			t.Fatalf("round trip mismatch: parse(%q).String() = %q", endpoint, got)
		}
	}
}

func TestParseAddressInvalid(t *testing.T) {
	cases := []string{"not-an-address", "127.0.0.1:999999", "127.0.0.1"}
	for _, endpoint := range cases {
		if _, err := ParseAddress(endpoint); err == nil {
			t.Fatalf("expected error parsing %q", endpoint)
		}
	}
}

func TestAddressOrdering(t *testing.T) {
	a, _ := NewAddress(IPv4, "10.0.0.1", 100)
	b, _ := NewAddress(IPv4, "10.0.0.1", 200)
	c, _ := NewAddress(IPv4, "10.0.0.2", 1)

	if !a.Less(b) {
		t.Fatal("expected a < b by port")
	}
	if !b.Less(c) {
		t.Fatal("expected b < c by host")
	}
	if a.Compare(a) != 0 {
		t.Fatal("expected equal addresses to compare as 0")
	}
}

func TestAddressWildcard(t *testing.T) {
	a := NewWildcard(IPv4)
	if !a.IsWildcard() {
		t.Fatal("expected wildcard address")
	}
	if a.Port() != 0 {
		t.Fatalf("expected port 0, got %d", a.Port())
	}
}

func TestFromRawRejectsBadLength(t *testing.T) {
	if _, err := FromRaw(IPv4, []byte{1, 2, 3}, 80); err == nil {
		t.Fatal("expected InvalidArgument for short ipv4 raw bytes")
	}
}

func TestNewAddressResolvesLoopbackHostname(t *testing.T) {
	addr, err := NewAddress(IPv4, "localhost", 53)
	if err != nil {
		t.Fatalf("resolve localhost: %v", err)
	}
	if addr.Port() != 53 {
		t.Fatalf("expected port 53, got %d", addr.Port())
	}
}
