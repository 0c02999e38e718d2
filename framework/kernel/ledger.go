package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Initializer builds one bean and writes it into its Place.
type Initializer func(ctx *InitContext) error

// Finalizer tears one bean down during shutdown.
type Finalizer func(a *ActiveToken) error

// Activator runs once the kernel is active, in registration order.
type Activator func(ctx *Context) error

// FinalizeOrder selects the order RunFinalize walks the ledger in.
type FinalizeOrder int

const (
	// ReverseOrder tears down the last-initialized bean first.
	ReverseOrder FinalizeOrder = iota
	// RegistrationOrder tears beans down in the order they were registered.
	RegistrationOrder
)

func (o FinalizeOrder) String() string {
	if o == RegistrationOrder {
		return "registration"
	}
	return "reverse"
}

// Entry is one ledger record. Place may be nil for entries that only run
// side effects; such entries are not addressable through the Registry.
type Entry struct {
	Key      Key
	Place    Cell
	Init     Initializer
	Finalize Finalizer
}

type activation struct {
	name string
	fn   Activator
}

// ── Ledger ────────────────────────────────────────────────────────────────────

// Ledger is the ordered list of initializer and finalizer entries. It is
// filled by explicit Register calls at startup and consumed exactly once by
// RunInit and once by RunFinalize.
type Ledger struct {
	mu        sync.Mutex
	entries   []Entry
	hooks     []activation
	started   bool
	finalized bool

	order    FinalizeOrder
	log      zerolog.Logger
	observer Observer
}

// NewLedger returns an empty ledger that finalizes in reverse order.
func NewLedger() *Ledger {
	return &Ledger{log: zerolog.Nop(), observer: NopObserver{}}
}

// SetFinalizeOrder changes the teardown order. It must be called before RunFinalize.
func (l *Ledger) SetFinalizeOrder(o FinalizeOrder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = o
}

// Register appends an entry. A nil fin on an entry with a Place defaults to
// the Place's own Deinitialize. Registering after RunInit started panics.
func (l *Ledger) Register(key Key, place Cell, init Initializer, fin Finalizer) {
	const op = "Ledger.Register"
	if init == nil {
		violate(op, "nil initializer for [%s]", key)
	}
	if fin == nil && place != nil {
		fin = place.Deinitialize
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		violate(op, "ledger is sealed, cannot register [%s]", key)
	}
	l.entries = append(l.entries, Entry{Key: key, Place: place, Init: init, Finalize: fin})
}

// OnActive registers a hook run after activation.
func (l *Ledger) OnActive(name string, fn Activator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		violate("Ledger.OnActive", "ledger is sealed, cannot add hook %q", name)
	}
	l.hooks = append(l.hooks, activation{name: name, fn: fn})
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the registered entries in order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Sealed reports whether RunInit has started.
func (l *Ledger) Sealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// RunInit runs every initializer in registration order. The first failure
// stops the sequence; already-initialized places are left as they are. On
// success t is sealed and may be passed to CompleteInit.
func (l *Ledger) RunInit(t *InitToken, cfg ConfigSource) error {
	const op = "Ledger.RunInit"
	t.check(op)
	if !t.ran.CompareAndSwap(false, true) {
		violate(op, "initializers already ran for lifecycle %s", t.lc.id)
	}

	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		violate(op, "ledger already ran")
	}
	l.started = true
	entries := append([]Entry(nil), l.entries...)
	l.mu.Unlock()

	for i, e := range entries {
		start := time.Now()
		err := e.Init(&InitContext{token: t, config: cfg, key: e.Key})
		if err == nil && e.Place != nil && e.Place.State() != PlaceReady {
			err = fmt.Errorf("initializer returned without writing place %q", e.Place.Name())
		}
		elapsed := time.Since(start)
		l.obs().EntryInitialized(e.Key, elapsed, err)
		if err != nil {
			return &InitError{Key: e.Key, Index: i, Err: err}
		}
		l.log.Debug().Str("key", string(e.Key)).Dur("took", elapsed).Msg("bean initialized")
	}

	t.sealed.Store(true)
	return nil
}

func (l *Ledger) obs() Observer {
	if l.observer == nil {
		return NopObserver{}
	}
	return l.observer
}

func (l *Ledger) runActivators(ctx *Context) error {
	l.mu.Lock()
	hooks := append([]activation(nil), l.hooks...)
	l.mu.Unlock()

	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			return fmt.Errorf("kernel: activate %s: %w", h.name, err)
		}
	}
	return nil
}

// RunFinalize runs every finalizer, by default last registered first. Every
// finalizer runs even when an earlier one fails; the failures are combined.
func (l *Ledger) RunFinalize(a *ActiveToken) error {
	const op = "Ledger.RunFinalize"
	a.check(op)

	l.mu.Lock()
	if l.finalized {
		l.mu.Unlock()
		violate(op, "ledger already finalized")
	}
	l.finalized = true
	entries := append([]Entry(nil), l.entries...)
	order := l.order
	l.mu.Unlock()

	a.lc.advance(op, PhaseActive, PhaseFinalizing)

	var errs error
	for n := range entries {
		i := n
		if order == ReverseOrder {
			i = len(entries) - 1 - n
		}
		e := entries[i]
		if e.Finalize == nil {
			continue
		}
		if e.Place != nil && e.Place.State() != PlaceReady {
			continue
		}
		start := time.Now()
		err := e.Finalize(a)
		l.obs().EntryFinalized(e.Key, time.Since(start), err)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("finalize [%s]: %w", e.Key, err))
			continue
		}
		l.log.Debug().Str("key", string(e.Key)).Msg("bean finalized")
	}

	a.lc.advance(op, PhaseFinalizing, PhaseFinalized)
	return errs
}
