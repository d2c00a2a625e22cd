package harness

import (
	"strconv"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/eszlari/uringcheck/sys"
	"golang.org/x/sys/unix"
)

const (
	ScenarioNoPeer      = "connect-no-peer"
	ScenarioWithPeer    = "connect"
	ScenarioLinkTimeout = "connect-link-timeout"
)

const (
	listenBacklog    = 128
	saturatedBacklog = 0
)

type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
)

type Result struct {
	Scenario string
	Outcome  Outcome
	Err      error
}

type Results struct {
	Scenarios []Result
}

func (r *Results) add(scenario string, outcome Outcome, err error) {
	r.Scenarios = append(r.Scenarios, Result{Scenario: scenario, Outcome: outcome, Err: err})
}

// OK reports whether no scenario failed. Skipped scenarios count as passed.
func (r Results) OK() bool {
	for _, s := range r.Scenarios {
		if s.Outcome == Failed {
			return false
		}
	}
	return true
}

// Runner drives the scenarios in order against one engine and one endpoint.
type Runner struct {
	engine   Engine
	reporter Reporter
	endpoint sys.Endpoint
	timeout  time.Duration
}

func NewRunner(engine Engine, reporter Reporter, endpoint sys.Endpoint, timeout time.Duration) *Runner {
	if reporter == nil {
		reporter = nullReporter{}
	}
	return &Runner{
		engine:   engine,
		reporter: reporter,
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// Run drives no-peer, connect and link-timeout in order. A verdict that the
// engine cannot connect at all skips the rest of the run and counts as a
// pass; the first failure aborts.
func (r *Runner) Run() Results {
	results := Results{}
	r.reporter.ScenarioStarted(ScenarioNoPeer)
	skip, err := r.noPeer()
	switch {
	case err != nil:
		results.add(ScenarioNoPeer, Failed, err)
		r.reporter.ScenarioFailed(ScenarioNoPeer, err)
		return results
	case skip:
		results.add(ScenarioNoPeer, Skipped, nil)
		r.reporter.ScenarioSkipped(ScenarioNoPeer, "connect is not supported by the engine")
		return results
	default:
		results.add(ScenarioNoPeer, Passed, nil)
		r.reporter.ScenarioPassed(ScenarioNoPeer)
	}
	r.reporter.ScenarioStarted(ScenarioWithPeer)
	if err = r.withPeer(); err != nil {
		results.add(ScenarioWithPeer, Failed, err)
		r.reporter.ScenarioFailed(ScenarioWithPeer, err)
		return results
	}
	results.add(ScenarioWithPeer, Passed, nil)
	r.reporter.ScenarioPassed(ScenarioWithPeer)
	r.reporter.ScenarioStarted(ScenarioLinkTimeout)
	if err = r.linkTimeout(); err != nil {
		results.add(ScenarioLinkTimeout, Failed, err)
		r.reporter.ScenarioFailed(ScenarioLinkTimeout, err)
		return results
	}
	results.add(ScenarioLinkTimeout, Passed, nil)
	r.reporter.ScenarioPassed(ScenarioLinkTimeout)
	return results
}

// noPeer connects to the endpoint with nothing listening on it. A refused
// connect passes, EINVAL, EBADF and EOPNOTSUPP report a missing connect
// capability, anything else is a failure.
func (r *Runner) noPeer() (bool, error) {
	sock, err := sys.NewStream()
	if err != nil {
		return false, errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer sock.Close()
	addr, addrLen := r.endpoint.Raw()
	code, err := NewConnector(r.engine).Connect(sock, addr, addrLen)
	if err != nil {
		return false, err
	}
	switch code {
	case -int32(unix.ECONNREFUSED):
		return false, nil
	case -int32(unix.EINVAL), -int32(unix.EBADF), -int32(unix.EOPNOTSUPP):
		return true, nil
	default:
		return false, errors.From(
			ErrExpectedOutcomeMismatch,
			errors.WithMeta(errMetaScenarioKey, ScenarioNoPeer),
			errors.WithMeta(errMetaGotKey, strconv.Itoa(int(code))),
			errors.WithMeta(errMetaWantKey, strconv.Itoa(-int(unix.ECONNREFUSED))),
		)
	}
}

// withPeer connects to a listening endpoint and expects a clean zero
// completion, directly or through the deferred readiness path.
func (r *Runner) withPeer() error {
	ln, err := sys.NewStream()
	if err != nil {
		return errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer ln.Close()
	if err = ln.Bind(r.endpoint); err != nil {
		return errors.From(
			ErrEnvironmentLimitation,
			errors.WithMeta(errMetaScenarioKey, ScenarioWithPeer),
			errors.WithWrap(err),
		)
	}
	if err = ln.Listen(listenBacklog); err != nil {
		return errors.From(
			ErrEnvironmentLimitation,
			errors.WithMeta(errMetaScenarioKey, ScenarioWithPeer),
			errors.WithWrap(err),
		)
	}
	sock, err := sys.NewStream()
	if err != nil {
		return errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer sock.Close()
	addr, addrLen := r.endpoint.Raw()
	code, err := NewConnector(r.engine).Connect(sock, addr, addrLen)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.From(
			ErrExpectedOutcomeMismatch,
			errors.WithMeta(errMetaScenarioKey, ScenarioWithPeer),
			errors.WithMeta(errMetaGotKey, strconv.Itoa(int(code))),
			errors.WithMeta(errMetaWantKey, "0"),
		)
	}
	return nil
}

// linkTimeout saturates a zero-length backlog with one plain connect, then
// verifies a linked connect+timeout pair completes as canceled and expired.
func (r *Runner) linkTimeout() error {
	sock, err := sys.NewStream()
	if err != nil {
		return errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer sock.Close()
	acceptor, err := sys.NewStream()
	if err != nil {
		return errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer acceptor.Close()
	if err = acceptor.Bind(r.endpoint); err != nil {
		return errors.From(
			ErrEnvironmentLimitation,
			errors.WithMeta(errMetaScenarioKey, ScenarioLinkTimeout),
			errors.WithWrap(err),
		)
	}
	if err = acceptor.Listen(saturatedBacklog); err != nil {
		return errors.From(
			ErrEnvironmentLimitation,
			errors.WithMeta(errMetaScenarioKey, ScenarioLinkTimeout),
			errors.WithWrap(err),
		)
	}
	filler, err := sys.NewBlockingStream()
	if err != nil {
		return errors.From(ErrResourceExhausted, errors.WithWrap(err))
	}
	defer filler.Close()
	if err = filler.Connect(r.endpoint); err != nil {
		return errors.From(
			ErrEnvironmentLimitation,
			errors.WithMeta(errMetaScenarioKey, ScenarioLinkTimeout),
			errors.WithWrap(err),
		)
	}
	addr, addrLen := r.endpoint.Raw()
	return NewLinkedTimeout(r.engine, r.timeout).Run(sock, addr, addrLen)
}
