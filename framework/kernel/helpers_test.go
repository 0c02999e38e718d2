package kernel_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/kernel"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Counter struct {
	Value int
}

type Greeter struct {
	Prefix  string
	Counter *Counter
}

func (g *Greeter) Greet(name string) string { return g.Prefix + ", " + name }

type Loud struct {
	Volume int
}

type closer struct {
	closed *[]string
	name   string
}

func (c closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

type mapConfig map[string]any

func (m mapConfig) Decode(key string, out any) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, nil
	}
	switch p := out.(type) {
	case *string:
		*p = v.(string)
	case *int:
		*p = v.(int)
	default:
		return true, &kernel.TypeMismatchError{Key: kernel.Key(key), Want: "string|int"}
	}
	return true, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func newKernel(t *testing.T, opts ...kernel.Option) *kernel.Kernel {
	t.Helper()
	base := []kernel.Option{
		kernel.WithGuard(kernel.NewGuard(t.Name())),
		kernel.WithLogger(zerolog.Nop()),
	}
	return kernel.New(append(base, opts...)...)
}

// activate drives a bare ledger through init and returns the active token.
func activate(t *testing.T, l *kernel.Ledger) *kernel.ActiveToken {
	t.Helper()
	u, err := kernel.NewGuard(t.Name()).Acquire()
	require.NoError(t, err)
	initTok := kernel.BeginInit(u)
	require.NoError(t, l.RunInit(initTok, kernel.NoConfig{}))
	return kernel.CompleteInit(initTok)
}

func requireViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		_, ok := r.(*kernel.ContractViolation)
		require.Truef(t, ok, "panic value %T (%v) is not a *kernel.ContractViolation", r, r)
	}()
	fn()
}
