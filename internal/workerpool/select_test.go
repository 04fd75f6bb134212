//go:build linux

package workerpool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFdSetHelpers(t *testing.T) {
	var set unix.FdSet
	fdZero(&set)

	require.False(t, fdIsSet(&set, 3))
	require.False(t, fdIsSet(&set, 130))

	fdSet(&set, 3)
	fdSet(&set, 130) // exercises the third Bits word (130/64 == 2)

	require.True(t, fdIsSet(&set, 3))
	require.True(t, fdIsSet(&set, 130))
	require.False(t, fdIsSet(&set, 4))

	fdZero(&set)
	require.False(t, fdIsSet(&set, 3))
	require.False(t, fdIsSet(&set, 130))
}
