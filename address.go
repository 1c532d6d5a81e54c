package fbnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
)

// Family identifies the IP family carried by an Address.
type Family int

const (
	IPv4 Family = Family(socket.IPv4)
	IPv6 Family = Family(socket.IPv6)
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Address is an immutable, family-tagged IP endpoint: a host and a port.
// Construct via NewAddress, NewWildcard, ParseAddress, or FromRaw. Zero
// value is not a valid Address.
type Address struct {
	family Family
	ip     net.IP
	port   int
}

// NewWildcard returns the wildcard address for family (0.0.0.0:0 or [::]:0).
func NewWildcard(family Family) Address {
	if family == IPv6 {
		return Address{family: IPv6, ip: net.IPv6zero, port: 0}
	}
	return Address{family: IPv4, ip: net.IPv4zero, port: 0}
}

// NewAddress resolves host (which may be a numeric address, a hostname, or
// the empty string for "any") synchronously, returning the first usable
// answer. Resolution failure raises errors.Resolve; a malformed port raises
// errors.InvalidArgument.
func NewAddress(family Family, host string, port int) (Address, error) {
	if port < 0 || port > 65535 {
		return Address{}, errors.New(errors.InvalidArgument, fmt.Sprintf("address: port %d out of range", port))
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		a := NewWildcard(family)
		a.port = port
		return a, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := resolveHost(family, host)
		if err != nil {
			return Address{}, errors.Wrap(errors.Resolve, fmt.Sprintf("address: resolve %q", host), err)
		}
		ip = resolved
	}
	if v4 := ip.To4(); v4 != nil && family == IPv4 {
		return Address{family: IPv4, ip: v4, port: port}, nil
	}
	if family == IPv6 {
		return Address{family: IPv6, ip: ip.To16(), port: port}, nil
	}
	if ip.To4() != nil {
		return Address{family: IPv4, ip: ip.To4(), port: port}, nil
	}
	return Address{family: IPv6, ip: ip.To16(), port: port}, nil
}

// resolveHost performs a synchronous, blocking DNS lookup and returns the
// first answer matching family, or the first answer of any family if none
// match exactly.
func resolveHost(family Family, host string) (net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses found for %q", host)
	}
	for _, a := range addrs {
		isV4 := a.IP.To4() != nil
		if (family == IPv4) == isV4 {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

// ParseAddress parses "host:port" (IPv4) or "[host]:port" (IPv6). The host
// portion may be a hostname, resolved synchronously.
func ParseAddress(endpoint string) (Address, error) {
	host, portStr, err := splitHostPort(endpoint)
	if err != nil {
		return Address{}, errors.Wrap(errors.InvalidArgument, fmt.Sprintf("address: parse %q", endpoint), err)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return Address{}, errors.Wrap(errors.InvalidArgument, fmt.Sprintf("address: parse %q", endpoint), err)
	}

	family := IPv4
	bracketed := strings.HasPrefix(endpoint, "[")
	if bracketed {
		family = IPv6
	} else if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		family = IPv6
	}
	return NewAddress(family, host, port)
}

func splitHostPort(endpoint string) (host, port string, err error) {
	return net.SplitHostPort(endpoint)
}

func parsePort(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 65535 {
			return 0, fmt.Errorf("port %d out of range", n)
		}
		return n, nil
	}
	port, err := net.DefaultResolver.LookupPort(context.Background(), "tcp", s)
	if err != nil {
		return 0, fmt.Errorf("unresolvable service name %q", s)
	}
	return port, nil
}

// FromRaw constructs an Address from a native sockaddr-equivalent byte
// slice: 4 bytes for IPv4, 16 for IPv6. Unknown lengths raise
// errors.InvalidArgument.
func FromRaw(family Family, raw []byte, port int) (Address, error) {
	switch family {
	case IPv4:
		if len(raw) != net.IPv4len {
			return Address{}, errors.New(errors.InvalidArgument, fmt.Sprintf("address: from_raw: expected %d bytes for ipv4, got %d", net.IPv4len, len(raw)))
		}
	case IPv6:
		if len(raw) != net.IPv6len {
			return Address{}, errors.New(errors.InvalidArgument, fmt.Sprintf("address: from_raw: expected %d bytes for ipv6, got %d", net.IPv6len, len(raw)))
		}
	default:
		return Address{}, errors.New(errors.InvalidArgument, "address: from_raw: unknown family")
	}
	ip := make(net.IP, len(raw))
	copy(ip, raw)
	return Address{family: family, ip: ip, port: port}, nil
}

func (a Address) Family() Family { return a.family }
func (a Address) Host() string   { return a.ip.String() }
func (a Address) Port() int      { return a.port }
func (a Address) IP() net.IP     { return a.ip }

// Raw returns the native-byte-order address bytes (4 for IPv4, 16 for IPv6).
func (a Address) Raw() []byte {
	if a.family == IPv4 {
		return a.ip.To4()
	}
	return a.ip.To16()
}

func (a Address) RawLen() int {
	if a.family == IPv4 {
		return net.IPv4len
	}
	return net.IPv6len
}

// String renders the endpoint in the canonical text form: "host:port" for
// IPv4, "[host]:port" for IPv6.
func (a Address) String() string {
	if a.family == IPv6 {
		return fmt.Sprintf("[%s]:%d", a.Host(), a.port)
	}
	return fmt.Sprintf("%s:%d", a.Host(), a.port)
}

// IsWildcard reports whether the address is the "any" address for its family.
func (a Address) IsWildcard() bool {
	return a.ip.Equal(net.IPv4zero) || a.ip.Equal(net.IPv6zero)
}

// Equal reports value equality.
func (a Address) Equal(other Address) bool {
	return a.family == other.family && a.ip.Equal(other.ip) && a.port == other.port
}

// Compare implements the total order from spec: family, then host string,
// then port. Returns -1, 0, or 1.
func (a Address) Compare(other Address) int {
	if a.family != other.family {
		if a.family < other.family {
			return -1
		}
		return 1
	}
	if h := strings.Compare(a.Host(), other.Host()); h != 0 {
		return h
	}
	switch {
	case a.port < other.port:
		return -1
	case a.port > other.port:
		return 1
	default:
		return 0
	}
}

// Less supports use of Address as a sort/ordering key.
func (a Address) Less(other Address) bool { return a.Compare(other) < 0 }
