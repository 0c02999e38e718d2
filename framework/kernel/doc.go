// Package kernel provides a process-wide registry of singleton beans with a
// strict three-phase lifecycle: registration, activation and teardown.
//
// # Overview
//
// Every bean lives in a Place. Places can only be written while holding the
// InitToken, and only read while holding the ActiveToken. The tokens come
// from a single-use Guard, so one process runs at most one activation cycle:
//
//	u, _ := kernel.AcquireUninitialized()   // second call: ErrDuplicatedInit
//	it := kernel.BeginInit(u)
//	_ = ledger.RunInit(it, cfg)              // seals it on success
//	active := kernel.CompleteInit(it)       // panics unless sealed
//	...
//	_ = ledger.RunFinalize(active)          // every Place is dropped
//
// Programming errors (reading before activation, writing twice, dropping
// twice) panic with a *ContractViolation. They are never returned as errors.
//
// # Defining beans
//
// Beans are registered explicitly, in construction order. An initializer
// may read beans registered before it with Depend:
//
//	k := kernel.New()
//
//	counter := kernel.Define(k.Ledger(), func(ctx *kernel.InitContext) (Counter, error) {
//	    return Counter{}, nil
//	})
//
//	greeter := kernel.Define(k.Ledger(), func(ctx *kernel.InitContext) (Greeter, error) {
//	    prefix, err := kernel.GetValueOr(ctx, "greeter.prefix", "hello")
//	    if err != nil {
//	        return Greeter{}, err
//	    }
//	    return Greeter{Prefix: prefix, Seen: kernel.Depend(ctx, counter).Value}, nil
//	})
//
// # Resolving
//
//	root, err := k.Boot(cfg, kernel.Bindings{"Speaker": greeter.Key()})
//
//	// Typed handle
//	c := counter.Get(root)
//
//	// By key
//	g, err := kernel.GetByKey[Greeter](root, kernel.KeyOf[Greeter]())
//
//	// By alias
//	s, err := kernel.GetByAlias[Greeter](root, "Speaker")
//
//	// Exclusive access
//	counter.GetMut(root, func(c *Counter) { c.Value++ })
//
// # Contexts
//
// A Context wraps one or more parents. Aliases it does not bind are
// inherited; aliases it binds shadow the parents' bindings. Inheriting one
// alias from two parents that disagree is rejected with ErrAmbiguousAlias.
//
//	module := root.Compose("module").Bind("Speaker", kernel.KeyOf[Loud]()).MustBuild()
//
//	kernel.GetByAlias[Loud](module, "Speaker")     // Loud
//	kernel.GetByAlias[Greeter](root, "Speaker")    // still Greeter
//
// # Teardown
//
// Kernel.Shutdown finalizes in reverse registration order, closing values
// that implement io.Closer. WithFinalizeOrder(RegistrationOrder) keeps the
// registration order instead.
package kernel
