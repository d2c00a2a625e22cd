package harness

import (
	"syscall"

	"github.com/brickingsoft/errors"
)

type fakeHandle struct {
	fd      int
	reused  int
	sockErr syscall.Errno
}

func (h *fakeHandle) Socket() int {
	return h.fd
}

func (h *fakeHandle) ConfigureReuse() error {
	h.reused++
	return nil
}

func (h *fakeHandle) SocketError() (syscall.Errno, error) {
	return h.sockErr, nil
}

// fakeEngine accepts every staged operation and serves scripted completions
// in the order given, regardless of which token was submitted first.
type fakeEngine struct {
	staged      []*Operation
	submitted   []*Operation
	completions []Completion
	submitCount func(staged int) int
}

func (e *fakeEngine) Prepare(op *Operation) error {
	e.staged = append(e.staged, op)
	return nil
}

func (e *fakeEngine) Submit() (int, error) {
	n := len(e.staged)
	e.submitted = append(e.submitted, e.staged...)
	e.staged = nil
	if e.submitCount != nil {
		return e.submitCount(n), nil
	}
	return n, nil
}

func (e *fakeEngine) SubmitAndWait(waitNr int) (int, error) {
	return e.Submit()
}

func (e *fakeEngine) WaitCompletion() (Completion, error) {
	if len(e.completions) == 0 {
		return Completion{}, errors.New("no completion available")
	}
	comp := e.completions[0]
	e.completions = e.completions[1:]
	return comp, nil
}

func (e *fakeEngine) PeekCompletion() (Completion, bool, error) {
	if len(e.completions) == 0 {
		return Completion{}, false, nil
	}
	comp := e.completions[0]
	e.completions = e.completions[1:]
	return comp, true, nil
}
