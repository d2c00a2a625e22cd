package harness

import (
	"strconv"
	"syscall"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

const (
	tokenConnect Token = 1
	tokenPoll    Token = 2
)

// pollInterest is the readiness set a deferred connect resolves through:
// writable, hung up, or error.
const pollInterest = uint32(unix.POLLOUT | unix.POLLHUP | unix.POLLERR)

// Connector drives one connect attempt through the engine and reports the
// final completion code: zero on success, negated errno on failure.
type Connector struct {
	engine Engine
}

func NewConnector(engine Engine) *Connector {
	return &Connector{engine: engine}
}

// Connect submits one connect operation for h and resolves its outcome.
// An -EINPROGRESS completion is resolved by one readiness poll round
// followed by a pending-error readout. There is exactly one connect round
// and at most one poll round, with no retries.
func (c *Connector) Connect(h Handle, addr *syscall.RawSockaddrAny, addrLen int32) (int32, error) {
	if err := h.ConfigureReuse(); err != nil {
		return 0, errors.New(
			"configure reuse failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(err),
		)
	}
	op := &Operation{
		Kind:    OpConnect,
		Token:   tokenConnect,
		Fd:      h.Socket(),
		Addr:    addr,
		AddrLen: addrLen,
	}
	comp, err := c.round(op)
	if err != nil {
		return 0, err
	}
	if comp.Res != -int32(unix.EINPROGRESS) {
		return comp.Res, nil
	}
	if err = c.pollWritable(h); err != nil {
		return 0, err
	}
	errno, sockErr := h.SocketError()
	if sockErr != nil {
		return 0, errors.New(
			"pending error readout failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(sockErr),
		)
	}
	return -int32(errno), nil
}

// round stages op, submits it, and waits for its single completion.
func (c *Connector) round(op *Operation) (Completion, error) {
	if err := c.engine.Prepare(op); err != nil {
		return Completion{}, err
	}
	n, err := c.engine.SubmitAndWait(1)
	if err != nil {
		return Completion{}, errors.New(
			"submit failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(err),
		)
	}
	if n != 1 {
		return Completion{}, errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaGotKey, strconv.Itoa(n)),
			errors.WithMeta(errMetaWantKey, "1"),
		)
	}
	comp, err := c.engine.WaitCompletion()
	if err != nil {
		return Completion{}, errors.New(
			"wait completion failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(err),
		)
	}
	if comp.Token != op.Token {
		return Completion{}, errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaTokenKey, strconv.FormatUint(uint64(comp.Token), 10)),
		)
	}
	return comp, nil
}

// pollWritable arms one readiness poll for h and validates that the
// completion carries at least one bit of the interest set.
func (c *Connector) pollWritable(h Handle) error {
	op := &Operation{
		Kind:     OpPollAdd,
		Token:    tokenPoll,
		Fd:       h.Socket(),
		PollMask: pollInterest,
	}
	comp, err := c.round(op)
	if err != nil {
		return err
	}
	if comp.Res < 0 {
		return errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(comp.Errno()),
		)
	}
	if uint32(comp.Res)&pollInterest == 0 {
		return errors.From(
			ErrProtocolViolation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaGotKey, strconv.Itoa(int(comp.Res))),
		)
	}
	return nil
}
