//go:build linux

package sys

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"unsafe"
)

// DefaultPort is the fixed verification endpoint port. The scenarios bind
// and connect to the same literal port so that refused, accepted and stalled
// connects all target one well-known address.
const DefaultPort uint16 = 0x1234

// Endpoint is an IPv4 TCP endpoint.
type Endpoint struct {
	Addr [4]byte
	Port uint16
}

func Loopback(port uint16) Endpoint {
	return Endpoint{Addr: [4]byte{127, 0, 0, 1}, Port: port}
}

func ParseEndpoint(host string, port uint16) (Endpoint, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return Endpoint{}, errors.New("host is invalid")
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return Endpoint{}, errors.New("host is not an IPv4 address")
	}
	ep := Endpoint{Port: port}
	copy(ep.Addr[:], ip4)
	return ep, nil
}

func (e Endpoint) Sockaddr() *syscall.SockaddrInet4 {
	return &syscall.SockaddrInet4{
		Port: int(e.Port),
		Addr: e.Addr,
	}
}

// Raw encodes the endpoint the way the submission queue consumes it, with
// the port in network byte order.
func (e Endpoint) Raw() (name *syscall.RawSockaddrAny, nameLen int32) {
	name = &syscall.RawSockaddrAny{}
	raw := (*syscall.RawSockaddrInet4)(unsafe.Pointer(name))
	raw.Family = syscall.AF_INET
	p := (*[2]byte)(unsafe.Pointer(&raw.Port))
	p[0] = byte(e.Port >> 8)
	p[1] = byte(e.Port)
	raw.Addr = e.Addr
	nameLen = int32(unsafe.Sizeof(*raw))
	return
}

func (e Endpoint) String() string {
	return net.IP(e.Addr[:]).String() + ":" + strconv.Itoa(int(e.Port))
}
