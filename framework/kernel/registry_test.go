package kernel_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/kernel"
)

func TestKeyOf(t *testing.T) {
	const pkg = "github.com/km-arc/go-beans/framework/kernel_test."

	assert.Equal(t, kernel.Key(pkg+"Counter"), kernel.KeyOf[Counter]())
	assert.Equal(t, kernel.Key(pkg+"Counter"), kernel.KeyOf[*Counter]())
	assert.Equal(t, kernel.Key("int"), kernel.KeyOf[int]())
	assert.Equal(t, kernel.Key("[]string"), kernel.KeyOf[[]string]())
}

func TestNewRegistry_DuplicateKey(t *testing.T) {
	l := kernel.NewLedger()
	kernel.Define(l, func(*kernel.InitContext) (Counter, error) { return Counter{}, nil })
	kernel.Define(l, func(*kernel.InitContext) (Counter, error) { return Counter{Value: 1}, nil })

	_, err := kernel.NewRegistry(l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kernel.ErrConfig))

	var dup *kernel.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, kernel.KeyOf[Counter](), dup.Key)
	assert.Equal(t, 0, dup.First)
	assert.Equal(t, 1, dup.Second)
}

func TestNewRegistry_SkipsAnonymousEntries(t *testing.T) {
	l := kernel.NewLedger()
	l.Register("", nil, func(*kernel.InitContext) error { return nil }, nil)
	kernel.DefineNamed(l, "n", func(*kernel.InitContext) (int, error) { return 3, nil })

	reg, err := kernel.NewRegistry(l)
	require.NoError(t, err)
	assert.Equal(t, []kernel.Key{"n"}, reg.Keys())
	assert.True(t, reg.Has("n"))
	assert.False(t, reg.Has(""))
}

func bootCounter(t *testing.T) (*kernel.Kernel, *kernel.Bean[Counter], *kernel.Context) {
	t.Helper()
	k := newKernel(t)
	counter := kernel.Define(k.Ledger(), func(*kernel.InitContext) (Counter, error) {
		return Counter{Value: 5}, nil
	})
	root, err := k.Boot(kernel.NoConfig{}, nil)
	require.NoError(t, err)
	return k, counter, root
}

func TestGetByKey(t *testing.T) {
	_, counter, root := bootCounter(t)

	got, err := kernel.GetByKey[Counter](root, kernel.KeyOf[Counter]())
	require.NoError(t, err)
	assert.Equal(t, 5, got.Value)
	assert.Same(t, counter.Get(root), got)
}

func TestGetByKey_Unregistered(t *testing.T) {
	_, _, root := bootCounter(t)

	_, err := kernel.GetByKey[Greeter](root, kernel.KeyOf[Greeter]())
	require.Error(t, err)
	assert.True(t, errors.Is(err, kernel.ErrUnregisteredKey))
}

func TestGetByKey_TypeMismatch(t *testing.T) {
	_, _, root := bootCounter(t)

	_, err := kernel.GetByKey[Greeter](root, kernel.KeyOf[Counter]())
	var mismatch *kernel.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Got, "Counter")
	assert.Contains(t, mismatch.Want, "Greeter")
}

func TestGetMutByKey(t *testing.T) {
	_, counter, root := bootCounter(t)

	err := kernel.GetMutByKey(root, kernel.KeyOf[Counter](), func(c *Counter) { c.Value *= 2 })
	require.NoError(t, err)
	assert.Equal(t, 10, counter.Get(root).Value)

	err = kernel.GetMutByKey(root, "missing", func(*Counter) {})
	assert.ErrorIs(t, err, kernel.ErrUnregisteredKey)
}

func TestRegistry_Describe(t *testing.T) {
	k, _, _ := bootCounter(t)

	infos := k.Registry().Describe()
	require.Len(t, infos, 1)
	assert.Equal(t, kernel.KeyOf[Counter](), infos[0].Key)
	assert.Equal(t, "kernel_test.Counter", infos[0].Type)
	assert.Equal(t, "ready", infos[0].State)
}
