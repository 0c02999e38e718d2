package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/kernel"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	c.PhaseChanged("id", kernel.PhaseUninitialized, kernel.PhaseInitializing)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "beans_kernel_phase")
	assert.Contains(t, names, "beans_kernel_phase_transitions_total")
}

func TestCollector_PhaseGauge(t *testing.T) {
	c := NewCollector("test")

	c.PhaseChanged("id", kernel.PhaseUninitialized, kernel.PhaseInitializing)
	c.PhaseChanged("id", kernel.PhaseInitializing, kernel.PhaseActive)

	assert.Equal(t, float64(kernel.PhaseActive), testutil.ToFloat64(c.phase))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("initializing")))
}

func TestCollector_EntryFailures(t *testing.T) {
	c := NewCollector("test")

	c.EntryInitialized("counter", time.Millisecond, nil)
	c.EntryInitialized("greeter", time.Millisecond, errors.New("boom"))
	c.EntryFinalized("counter", time.Millisecond, errors.New("close failed"))
	c.EntryFinalized("", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("greeter", "init")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("counter", "finalize")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.failures.WithLabelValues("counter", "init")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.initLatency))
	assert.Equal(t, 2, testutil.CollectAndCount(c.finLatency))
}

func TestCollector_AsKernelObserver(t *testing.T) {
	c := NewCollector("test")
	k := kernel.New(
		kernel.WithGuard(kernel.NewGuard(t.Name())),
		kernel.WithLogger(zerolog.Nop()),
		kernel.WithObserver(c),
	)
	kernel.DefineNamed(k.Ledger(), "answer", func(*kernel.InitContext) (int, error) { return 42, nil })

	_, err := k.Boot(nil, nil)
	require.NoError(t, err)
	require.NoError(t, k.Shutdown())

	assert.Equal(t, float64(kernel.PhaseFinalized), testutil.ToFloat64(c.phase))

	expected := `
# HELP test_kernel_phase_transitions_total Phase transitions by target phase
# TYPE test_kernel_phase_transitions_total counter
test_kernel_phase_transitions_total{to="active"} 1
test_kernel_phase_transitions_total{to="finalized"} 1
test_kernel_phase_transitions_total{to="finalizing"} 1
test_kernel_phase_transitions_total{to="initializing"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c.transitions, strings.NewReader(expected)))
}
