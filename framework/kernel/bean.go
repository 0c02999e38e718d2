package kernel

// Bean is the typed handle returned by Define. It owns the bean's Place and
// gives lookups that cannot miss the key.
type Bean[T any] struct {
	key   Key
	place *Place[T]
}

// Define registers a bean keyed by its type name.
//
//	var counter = kernel.Define(ledger, func(ctx *kernel.InitContext) (Counter, error) {
//	    return Counter{}, nil
//	})
func Define[T any](l *Ledger, build func(ctx *InitContext) (T, error)) *Bean[T] {
	return DefineNamed(l, KeyOf[T](), build)
}

// DefineNamed registers a bean under an explicit key.
func DefineNamed[T any](l *Ledger, key Key, build func(ctx *InitContext) (T, error)) *Bean[T] {
	p := NewPlace[T](string(key))
	l.Register(key, p, func(ctx *InitContext) error {
		v, err := build(ctx)
		if err != nil {
			return err
		}
		p.Initialize(ctx.token).Write(v)
		return nil
	}, nil)
	return &Bean[T]{key: key, place: p}
}

// WithTeardown sets the function run when the bean is finalized, replacing
// the value's own Close method.
func (b *Bean[T]) WithTeardown(fn func(*T) error) *Bean[T] {
	b.place.SetTeardown(fn)
	return b
}

func (b *Bean[T]) Key() Key { return b.key }

func (b *Bean[T]) Place() *Place[T] { return b.place }

// Get returns shared access to the bean.
func (b *Bean[T]) Get(c *Context) *T { return b.place.Get(c.active) }

// GetMut runs fn with exclusive access to the bean.
func (b *Bean[T]) GetMut(c *Context, fn func(*T)) { b.place.GetMut(c.active, fn) }

// Depend reads a bean registered earlier in the ledger from inside an
// initializer. Reading a bean whose initializer has not run yet panics with
// a ContractViolation: ledger order is construction order.
func Depend[T any](ctx *InitContext, b *Bean[T]) *T {
	return b.place.Peek(ctx.token)
}
