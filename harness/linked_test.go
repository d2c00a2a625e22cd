package harness

import (
	"testing"
	"time"

	"github.com/eszlari/uringcheck/sys"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLinkedTimeoutCancelsConnectAndExpiresTimer(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
	}}
	h := &fakeHandle{fd: 3}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(h, addr, addrLen)
	require.NoError(t, err)
	require.Equal(t, 1, h.reused)
	require.Len(t, engine.submitted, 2)

	connect, timeout := engine.submitted[0], engine.submitted[1]
	require.Equal(t, OpConnect, connect.Kind)
	require.Equal(t, tokenLinkedConnect, connect.Token)
	require.True(t, connect.Linked)
	require.Equal(t, 3, connect.Fd)
	require.Equal(t, OpLinkTimeout, timeout.Kind)
	require.Equal(t, tokenLinkTimeout, timeout.Token)
	require.False(t, timeout.Linked)
	require.Equal(t, LinkTimeout, timeout.Timeout)
}

func TestLinkedTimeoutArrivalOrderIsFree(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.NoError(t, err)
}

func TestLinkedTimeoutCarriesConfiguredDeadline(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, time.Millisecond).Run(&fakeHandle{}, addr, addrLen)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, engine.submitted[1].Timeout)
}

func TestLinkedTimeoutWrongResultIsMismatch(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkedConnect, Res: -int32(unix.ETIMEDOUT)},
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.Error(t, err)
	require.True(t, IsExpectedOutcomeMismatch(err))
}

func TestLinkedTimeoutForeignTokenIsViolation(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: 9, Res: -int32(unix.ECANCELED)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.Error(t, err)
	require.True(t, IsProtocolViolation(err))
}

func TestLinkedTimeoutDuplicateTokenIsViolation(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.Error(t, err)
	require.True(t, IsProtocolViolation(err))
}

func TestLinkedTimeoutExtraCompletionIsViolation(t *testing.T) {
	engine := &fakeEngine{completions: []Completion{
		{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
		{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
	}}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.Error(t, err)
	require.True(t, IsProtocolViolation(err))
}

func TestLinkedTimeoutShortSubmitIsViolation(t *testing.T) {
	engine := &fakeEngine{
		completions: []Completion{
			{Token: tokenLinkedConnect, Res: -int32(unix.ECANCELED)},
			{Token: tokenLinkTimeout, Res: -int32(unix.ETIME)},
		},
		submitCount: func(int) int { return 1 },
	}
	addr, addrLen := sys.Loopback(sys.DefaultPort).Raw()

	err := NewLinkedTimeout(engine, 0).Run(&fakeHandle{}, addr, addrLen)
	require.Error(t, err)
	require.True(t, IsProtocolViolation(err))
}
