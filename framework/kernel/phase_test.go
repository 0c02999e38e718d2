package kernel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/kernel"
)

// The only test in this package that touches the process-wide guard.
func TestAcquireUninitialized_OnlyOnce(t *testing.T) {
	u, err := kernel.AcquireUninitialized()
	require.NoError(t, err)
	require.NotNil(t, u)

	for i := 0; i < 3; i++ {
		_, err := kernel.AcquireUninitialized()
		require.Error(t, err)
		assert.True(t, errors.Is(err, kernel.ErrDuplicatedInit))

		var dup *kernel.DuplicatedInitError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "kernel", dup.Resource)
	}
}

func TestGuard_AcquireOnce(t *testing.T) {
	g := kernel.NewGuard("db")
	assert.False(t, g.Taken())

	_, err := g.Acquire()
	require.NoError(t, err)
	assert.True(t, g.Taken())

	_, err = g.Acquire()
	assert.EqualError(t, err, `kernel: initialization for "db" has already been done`)
}

func TestBeginInit_ConsumesToken(t *testing.T) {
	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)

	kernel.BeginInit(u)
	requireViolation(t, func() { kernel.BeginInit(u) })
}

func TestBeginInit_NilToken(t *testing.T) {
	requireViolation(t, func() { kernel.BeginInit(nil) })
}

func TestCompleteInit_RequiresSealedToken(t *testing.T) {
	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)

	requireViolation(t, func() { kernel.CompleteInit(initTok) })
}

func TestCompleteInit_RejectedAfterFailedRun(t *testing.T) {
	l := kernel.NewLedger()
	l.Register("broken", nil, func(*kernel.InitContext) error { return errors.New("boom") }, nil)

	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)
	require.Error(t, l.RunInit(initTok, kernel.NoConfig{}))
	assert.False(t, initTok.Sealed())

	requireViolation(t, func() { kernel.CompleteInit(initTok) })
}

func TestCompleteInit_OnlyOnce(t *testing.T) {
	l := kernel.NewLedger()
	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)
	require.NoError(t, l.RunInit(initTok, kernel.NoConfig{}))

	a := kernel.CompleteInit(initTok)
	assert.Equal(t, kernel.PhaseActive, a.Phase())
	assert.NotEmpty(t, a.LifecycleID())

	requireViolation(t, func() { kernel.CompleteInit(initTok) })
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase kernel.Phase
		want  string
	}{
		{kernel.PhaseUninitialized, "uninitialized"},
		{kernel.PhaseInitializing, "initializing"},
		{kernel.PhaseActive, "active"},
		{kernel.PhaseFinalizing, "finalizing"},
		{kernel.PhaseFinalized, "finalized"},
		{kernel.Phase(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.String())
	}
}
