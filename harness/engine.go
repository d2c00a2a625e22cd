package harness

import (
	"syscall"
	"time"
)

// Token correlates a submitted operation with its completion. Completions
// are matched by token, never by arrival order.
type Token uint64

// Completion is one reaped completion event. Res follows the completion
// queue convention: zero or positive on success, negated errno on failure.
type Completion struct {
	Token Token
	Res   int32
}

func (c Completion) Errno() syscall.Errno {
	if c.Res >= 0 {
		return 0
	}
	return syscall.Errno(-c.Res)
}

type OpKind int

const (
	OpConnect OpKind = iota
	OpPollAdd
	OpLinkTimeout
)

// Operation describes one staged submission. Addr and the operation value
// itself must stay reachable until the completion is reaped.
type Operation struct {
	Kind     OpKind
	Token    Token
	Linked   bool
	Fd       int
	Addr     *syscall.RawSockaddrAny
	AddrLen  int32
	PollMask uint32
	Timeout  time.Duration
}

// Engine is the completion queue contract the scenarios drive.
type Engine interface {
	// Prepare stages op into the submission queue without submitting it.
	Prepare(op *Operation) error
	// Submit pushes every staged operation to the engine and returns the
	// count accepted.
	Submit() (int, error)
	// SubmitAndWait pushes staged operations and blocks until at least
	// waitNr completions are available.
	SubmitAndWait(waitNr int) (int, error)
	// WaitCompletion blocks for one completion and consumes it.
	WaitCompletion() (Completion, error)
	// PeekCompletion consumes one completion only if one is already
	// available.
	PeekCompletion() (Completion, bool, error)
}

// Handle is the view of a connecting socket the scenarios need.
type Handle interface {
	Socket() int
	ConfigureReuse() error
	SocketError() (syscall.Errno, error)
}
