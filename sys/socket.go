//go:build linux

package sys

import (
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// Socket owns one stream socket descriptor. Close releases the descriptor
// exactly once no matter how many times it is called.
type Socket struct {
	sock   int
	closed atomic.Bool
}

// NewStream opens a non-blocking CLOEXEC IPv4 stream socket.
func NewStream() (*Socket, error) {
	sock, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	return &Socket{sock: sock}, nil
}

// NewBlockingStream opens a blocking CLOEXEC IPv4 stream socket. The linked
// timeout scenario uses one to occupy a zero-length accept backlog.
func NewBlockingStream() (*Socket, error) {
	sock, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	return &Socket{sock: sock}, nil
}

func (s *Socket) Socket() int {
	return s.sock
}

// ConfigureReuse allows rebinding the fixed verification endpoint across
// consecutive runs.
func (s *Socket) ConfigureReuse() error {
	if err := syscall.SetsockoptInt(s.sock, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	if err := syscall.SetsockoptInt(s.sock, syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

func (s *Socket) Bind(ep Endpoint) error {
	if err := syscall.Bind(s.sock, ep.Sockaddr()); err != nil {
		return os.NewSyscallError("bind", err)
	}
	return nil
}

func (s *Socket) Listen(backlog int) error {
	if err := syscall.Listen(s.sock, backlog); err != nil {
		return os.NewSyscallError("listen", err)
	}
	return nil
}

// Connect performs a plain blocking connect.
func (s *Socket) Connect(ep Endpoint) error {
	if err := syscall.Connect(s.sock, ep.Sockaddr()); err != nil {
		return os.NewSyscallError("connect", err)
	}
	return nil
}

// SocketError reads and clears the pending error on the socket. It carries
// the deferred outcome of an in-progress connect.
func (s *Socket) SocketError() (syscall.Errno, error) {
	v, err := syscall.GetsockoptInt(s.sock, syscall.SOL_SOCKET, syscall.SO_ERROR)
	if err != nil {
		return 0, os.NewSyscallError("getsockopt", err)
	}
	return syscall.Errno(v), nil
}

func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := syscall.Close(s.sock); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
