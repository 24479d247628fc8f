package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_FallsBackToInfoOnBadLevel(t *testing.T) {
	l := New("nonsense")
	require.NotNil(t, l)
	l.Info("hello", "k", "v")
	l.Sync()
}

func TestWith_ReturnsChild(t *testing.T) {
	var l Logger = Nop()
	child := l.With("flight", "SQ114")
	require.NotNil(t, child)
	child.Warn("noop")
}
