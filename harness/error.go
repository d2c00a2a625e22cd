package harness

import "github.com/brickingsoft/errors"

var (
	ErrResourceExhausted       = errors.Define("resource exhausted")
	ErrProtocolViolation       = errors.Define("protocol violation")
	ErrExpectedOutcomeMismatch = errors.Define("expected outcome mismatch")
	ErrEnvironmentLimitation   = errors.Define("environment limitation")
)

func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}

func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

func IsExpectedOutcomeMismatch(err error) bool {
	return errors.Is(err, ErrExpectedOutcomeMismatch)
}

func IsEnvironmentLimitation(err error) bool {
	return errors.Is(err, ErrEnvironmentLimitation)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "harness"
)

const (
	errMetaScenarioKey = "scenario"
	errMetaTokenKey    = "token"
	errMetaGotKey      = "got"
	errMetaWantKey     = "want"
)
