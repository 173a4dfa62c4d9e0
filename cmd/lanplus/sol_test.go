package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeFilter(t *testing.T) {
	f := &escapeFilter{escape: '~', atLineStart: true}

	out, detach := f.filter([]byte("ls~.\r"))
	require.False(t, detach)
	require.Equal(t, "ls~.\r", string(out))

	out, detach = f.filter([]byte("~~x"))
	require.False(t, detach)
	require.Equal(t, "~x", string(out))

	out, detach = f.filter([]byte("\n~a"))
	require.False(t, detach)
	require.Equal(t, "\n~a", string(out))

	out, detach = f.filter([]byte("\recho\r~"))
	require.False(t, detach)
	require.Equal(t, "\recho\r", string(out))

	out, detach = f.filter([]byte(".rest"))
	require.True(t, detach)
	require.Empty(t, out)
}
