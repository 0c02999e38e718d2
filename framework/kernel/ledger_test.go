package kernel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/km-arc/go-beans/framework/kernel"
)

func TestLedger_InitializersRunInOrder(t *testing.T) {
	l := kernel.NewLedger()

	a := kernel.DefineNamed(l, "A", func(*kernel.InitContext) (int, error) { return 1, nil })
	b := kernel.DefineNamed(l, "B", func(ctx *kernel.InitContext) (int, error) {
		return *kernel.Depend(ctx, a) + 1, nil
	})

	active := activate(t, l)
	assert.Equal(t, 1, *a.Place().Get(active))
	assert.Equal(t, 2, *b.Place().Get(active))
}

func TestLedger_DependOnLaterEntryIsViolation(t *testing.T) {
	l := kernel.NewLedger()

	// Registered [B, A]: B reads A before A's initializer has run.
	var a *kernel.Bean[int]
	kernel.DefineNamed(l, "B", func(ctx *kernel.InitContext) (int, error) {
		return *kernel.Depend(ctx, a) + 1, nil
	})
	a = kernel.DefineNamed(l, "A", func(*kernel.InitContext) (int, error) { return 1, nil })

	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)

	requireViolation(t, func() { _ = l.RunInit(initTok, kernel.NoConfig{}) })
	assert.False(t, initTok.Sealed())
}

func TestLedger_FirstFailureAborts(t *testing.T) {
	l := kernel.NewLedger()
	var ran []string
	step := func(name string, err error) kernel.Initializer {
		return func(*kernel.InitContext) error {
			ran = append(ran, name)
			return err
		}
	}
	boom := errors.New("boom")
	l.Register("one", nil, step("one", nil), nil)
	l.Register("two", nil, step("two", boom), nil)
	l.Register("three", nil, step("three", nil), nil)

	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	err = l.RunInit(kernel.BeginInit(u), kernel.NoConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var initErr *kernel.InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, kernel.Key("two"), initErr.Key)
	assert.Equal(t, 1, initErr.Index)
	assert.Equal(t, []string{"one", "two"}, ran)
}

func TestLedger_InitializerMustWritePlace(t *testing.T) {
	l := kernel.NewLedger()
	place := kernel.NewPlace[int]("lazy")
	l.Register("lazy", place, func(*kernel.InitContext) error { return nil }, nil)

	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	err = l.RunInit(kernel.BeginInit(u), kernel.NoConfig{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `without writing place "lazy"`)
}

func TestLedger_RegisterAfterRunInit(t *testing.T) {
	l := kernel.NewLedger()
	activate(t, l)

	assert.True(t, l.Sealed())
	requireViolation(t, func() {
		l.Register("late", nil, func(*kernel.InitContext) error { return nil }, nil)
	})
	requireViolation(t, func() {
		l.OnActive("late", func(*kernel.Context) error { return nil })
	})
}

func TestLedger_RegisterNilInitializer(t *testing.T) {
	requireViolation(t, func() { kernel.NewLedger().Register("nil", nil, nil, nil) })
}

func TestLedger_RunInitTwice(t *testing.T) {
	l := kernel.NewLedger()
	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)
	require.NoError(t, l.RunInit(initTok, kernel.NoConfig{}))

	requireViolation(t, func() { _ = l.RunInit(initTok, kernel.NoConfig{}) })
}

func finalizeLog(l *kernel.Ledger, names ...string) *[]string {
	var order []string
	for _, name := range names {
		name := name
		l.Register(kernel.Key(name), nil,
			func(*kernel.InitContext) error { return nil },
			func(*kernel.ActiveToken) error {
				order = append(order, name)
				return nil
			})
	}
	return &order
}

func TestLedger_FinalizeReverseByDefault(t *testing.T) {
	l := kernel.NewLedger()
	order := finalizeLog(l, "a", "b", "c")
	active := activate(t, l)

	require.NoError(t, l.RunFinalize(active))
	assert.Equal(t, []string{"c", "b", "a"}, *order)
	assert.Equal(t, kernel.PhaseFinalized, active.Phase())
}

func TestLedger_FinalizeRegistrationOrder(t *testing.T) {
	l := kernel.NewLedger()
	l.SetFinalizeOrder(kernel.RegistrationOrder)
	order := finalizeLog(l, "a", "b", "c")
	active := activate(t, l)

	require.NoError(t, l.RunFinalize(active))
	assert.Equal(t, []string{"a", "b", "c"}, *order)
}

func TestLedger_FinalizeAggregatesErrors(t *testing.T) {
	l := kernel.NewLedger()
	ran := 0
	fail := func(msg string) kernel.Finalizer {
		return func(*kernel.ActiveToken) error {
			ran++
			return errors.New(msg)
		}
	}
	noop := func(*kernel.InitContext) error { return nil }
	l.Register("x", nil, noop, fail("x down"))
	l.Register("y", nil, noop, fail("y down"))
	active := activate(t, l)

	err := l.RunFinalize(active)
	require.Error(t, err)
	assert.Equal(t, 2, ran)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "finalize [y]: y down")
	assert.Contains(t, err.Error(), "finalize [x]: x down")
}

func TestLedger_FinalizeTwice(t *testing.T) {
	l := kernel.NewLedger()
	active := activate(t, l)
	require.NoError(t, l.RunFinalize(active))

	requireViolation(t, func() { _ = l.RunFinalize(active) })
}

func TestLedger_FinalizeDropsPlaces(t *testing.T) {
	l := kernel.NewLedger()
	var closed []string
	first := kernel.DefineNamed(l, "first", func(*kernel.InitContext) (closer, error) {
		return closer{closed: &closed, name: "first"}, nil
	})
	second := kernel.DefineNamed(l, "second", func(*kernel.InitContext) (closer, error) {
		return closer{closed: &closed, name: "second"}, nil
	})
	active := activate(t, l)

	require.NoError(t, l.RunFinalize(active))
	assert.Equal(t, []string{"second", "first"}, closed)
	assert.Equal(t, kernel.PlaceDropped, first.Place().State())
	assert.Equal(t, kernel.PlaceDropped, second.Place().State())
	requireViolation(t, func() { first.Place().Get(active) })
}
