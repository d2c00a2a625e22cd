package harness

import (
	"strconv"
	"syscall"
	"time"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

const (
	tokenLinkedConnect Token = 1
	tokenLinkTimeout   Token = 2
)

// LinkTimeout is the default deadline armed against the stalled connect.
const LinkTimeout = 100000 * time.Nanosecond

// LinkedTimeout drives a connect soft-linked to a timeout against an
// endpoint that accepts no further connections, and verifies the engine
// cancels the connect and expires the timer. Completion arrival order is
// free; only token identity decides which expectation applies.
type LinkedTimeout struct {
	engine  Engine
	timeout time.Duration
}

func NewLinkedTimeout(engine Engine, timeout time.Duration) *LinkedTimeout {
	if timeout <= 0 {
		timeout = LinkTimeout
	}
	return &LinkedTimeout{engine: engine, timeout: timeout}
}

func (l *LinkedTimeout) Run(h Handle, addr *syscall.RawSockaddrAny, addrLen int32) error {
	if err := h.ConfigureReuse(); err != nil {
		return errors.New(
			"configure reuse failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(err),
		)
	}
	connect := &Operation{
		Kind:    OpConnect,
		Token:   tokenLinkedConnect,
		Linked:  true,
		Fd:      h.Socket(),
		Addr:    addr,
		AddrLen: addrLen,
	}
	timeout := &Operation{
		Kind:    OpLinkTimeout,
		Token:   tokenLinkTimeout,
		Timeout: l.timeout,
	}
	if err := l.engine.Prepare(connect); err != nil {
		return err
	}
	if err := l.engine.Prepare(timeout); err != nil {
		return err
	}
	n, err := l.engine.Submit()
	if err != nil {
		return errors.New(
			"submit failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(err),
		)
	}
	if n != 2 {
		return errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaGotKey, strconv.Itoa(n)),
			errors.WithMeta(errMetaWantKey, "2"),
		)
	}
	expected := map[Token]int32{
		tokenLinkedConnect: -int32(unix.ECANCELED),
		tokenLinkTimeout:   -int32(unix.ETIME),
	}
	for i := 0; i < 2; i++ {
		comp, waitErr := l.engine.WaitCompletion()
		if waitErr != nil {
			return errors.New(
				"wait completion failed",
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithWrap(waitErr),
			)
		}
		want, ok := expected[comp.Token]
		if !ok {
			return errors.From(
				ErrProtocolViolation,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaTokenKey, strconv.FormatUint(uint64(comp.Token), 10)),
			)
		}
		if comp.Res != want {
			return errors.From(
				ErrExpectedOutcomeMismatch,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaTokenKey, strconv.FormatUint(uint64(comp.Token), 10)),
				errors.WithMeta(errMetaGotKey, strconv.Itoa(int(comp.Res))),
				errors.WithMeta(errMetaWantKey, strconv.Itoa(int(want))),
			)
		}
		delete(expected, comp.Token)
	}
	// the linked pair must produce exactly two completions
	comp, ok, peekErr := l.engine.PeekCompletion()
	if peekErr != nil {
		return errors.New(
			"peek completion failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(peekErr),
		)
	}
	if ok {
		return errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaTokenKey, strconv.FormatUint(uint64(comp.Token), 10)),
		)
	}
	return nil
}
