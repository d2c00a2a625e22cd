//go:build linux

// Package uring adapts a giouring ring to the engine contract the harness
// drives.
package uring

import (
	"runtime"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/eszlari/uringcheck/harness"
	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

const DefaultDepth = 8

var ErrSubmissionQueueFull = errors.Define("submission queue is full")

// Queue owns one ring. It is not safe for concurrent use; the harness is
// strictly sequential.
type Queue struct {
	ring     *giouring.Ring
	retained []*syscall.Timespec
}

func New(depth int) (*Queue, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	ring, err := giouring.CreateRing(uint32(depth))
	if err != nil {
		return nil, err
	}
	return &Queue{ring: ring}, nil
}

// Prepare stages op into the submission queue without submitting it.
func (q *Queue) Prepare(op *harness.Operation) error {
	sqe := q.ring.GetSQE()
	if sqe == nil {
		return errors.From(
			harness.ErrResourceExhausted,
			errors.WithWrap(ErrSubmissionQueueFull),
		)
	}
	return q.prepare(sqe, op)
}

func (q *Queue) prepare(sqe *giouring.SubmissionQueueEntry, op *harness.Operation) error {
	switch op.Kind {
	case harness.OpConnect:
		prepareRW(sqe, giouring.OpConnect, op.Fd, uintptr(unsafe.Pointer(op.Addr)), 0, uint64(op.AddrLen))
	case harness.OpPollAdd:
		sqe.PreparePollAdd(op.Fd, op.PollMask)
	case harness.OpLinkTimeout:
		// the kernel reads the timespec when the linked pair resolves,
		// keep it reachable until the queue is closed
		ts := new(syscall.Timespec)
		*ts = syscall.NsecToTimespec(op.Timeout.Nanoseconds())
		q.retained = append(q.retained, ts)
		prepareRW(sqe, giouring.OpLinkTimeout, -1, uintptr(unsafe.Pointer(ts)), 1, 0)
	default:
		sqe.PrepareNop()
		return errors.New("unknown operation kind")
	}
	if op.Linked {
		sqe.Flags |= giouring.SqeIOLink
	}
	sqe.SetData64(uint64(op.Token))
	runtime.KeepAlive(sqe)
	return nil
}

// prepareRW lays the fields out the way io_uring_prep_rw does. The library
// connect and link-timeout helpers point the SQE at a function-local value,
// which is gone by the time the kernel reads it, so those two operations are
// staged directly against memory the queue keeps alive.
func prepareRW(sqe *giouring.SubmissionQueueEntry, opcode uint8, fd int, addr uintptr, length uint32, offset uint64) {
	sqe.OpCode = opcode
	sqe.Flags = 0
	sqe.IoPrio = 0
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Addr = uint64(addr)
	sqe.Len = length
	// connect rejects a nonzero rw_flags field, a reused SQE must not
	// leak one
	sqe.OpcodeFlags = 0
	sqe.UserData = 0
	sqe.BufIG = 0
	sqe.Personality = 0
	sqe.SpliceFdIn = 0
}

func (q *Queue) Submit() (int, error) {
	n, err := q.ring.Submit()
	return int(n), err
}

func (q *Queue) SubmitAndWait(waitNr int) (int, error) {
	n, err := q.ring.SubmitAndWait(uint32(waitNr))
	return int(n), err
}

// WaitCompletion blocks for one completion and marks it seen.
func (q *Queue) WaitCompletion() (harness.Completion, error) {
	cqe, err := q.ring.WaitCQE()
	if err != nil {
		return harness.Completion{}, err
	}
	comp := harness.Completion{
		Token: harness.Token(cqe.UserData),
		Res:   cqe.Res,
	}
	q.ring.CQESeen(cqe)
	return comp, nil
}

// PeekCompletion consumes one completion only if one is already reaped.
func (q *Queue) PeekCompletion() (harness.Completion, bool, error) {
	cqe, err := q.ring.PeekCQE()
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return harness.Completion{}, false, nil
		}
		return harness.Completion{}, false, err
	}
	comp := harness.Completion{
		Token: harness.Token(cqe.UserData),
		Res:   cqe.Res,
	}
	q.ring.CQESeen(cqe)
	return comp, true, nil
}

func (q *Queue) Close() {
	q.ring.QueueExit()
	q.retained = nil
}
