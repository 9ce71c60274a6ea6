//go:build unit

package broker

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hugolhafner/go-streams-testing/port"
)

func TestFabric_ListenHandsOutOfferedListener(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	l, err := a.Allocate(0)
	require.NoError(t, err)
	defer l.Release()

	f := newFabric()
	offered := l.Listener()
	f.offer(l.Port(), offered)

	ln, err := f.listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(l.Port())))
	require.NoError(t, err)
	require.Same(t, offered, ln)
	require.False(t, port.Free(port.DefaultHost, l.Port()))

	_, err = f.listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(l.Port())))
	require.ErrorIs(t, err, port.ErrUnavailable)

	require.NoError(t, ln.Close())
}

func TestFabric_ListenRejectsUnleasedPort(t *testing.T) {
	t.Parallel()
	f := newFabric()

	_, err := f.listen("tcp", "127.0.0.1:0")
	require.ErrorIs(t, err, port.ErrUnavailable)

	_, err = f.listen("tcp", "not-an-address")
	require.Error(t, err)
}

func TestFabric_WithdrawUntakenListener(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	l, err := a.Allocate(0)
	require.NoError(t, err)
	defer l.Release()

	f := newFabric()
	offered := l.Listener()
	f.offer(l.Port(), offered)

	require.Same(t, offered, f.withdraw(l.Port()))
	require.Nil(t, f.withdraw(l.Port()))
	require.NoError(t, offered.Close())
}
