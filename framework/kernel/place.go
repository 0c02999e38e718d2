package kernel

import (
	"bytes"
	"io"
	"reflect"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// PlaceState tracks where a Place is in its own lifecycle.
type PlaceState int32

const (
	PlaceEmpty PlaceState = iota
	PlaceReserved
	PlaceReady
	PlaceDropped
)

func (s PlaceState) String() string {
	switch s {
	case PlaceEmpty:
		return "empty"
	case PlaceReserved:
		return "reserved"
	case PlaceReady:
		return "ready"
	case PlaceDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Cell is the type-erased view of a Place used by the ledger and registry.
// Only Place implements it.
type Cell interface {
	Name() string
	State() PlaceState
	Type() reflect.Type
	Deinitialize(a *ActiveToken) error

	getAny(op string, a *ActiveToken) any
	mutAny(op string, a *ActiveToken, fn func(any))
}

// ── Place ─────────────────────────────────────────────────────────────────────

// Place is the storage cell for exactly one bean. It is normally a
// package-level variable so its identity is static:
//
//	var counterPlace = kernel.NewPlace[Counter]("counter")
//
//	// init phase
//	counterPlace.Initialize(initToken).Write(Counter{})
//
//	// active phase
//	c := counterPlace.Get(activeToken)
//	counterPlace.GetMut(activeToken, func(c *Counter) { c.Value++ })
type Place[T any] struct {
	name string

	mu       sync.Mutex
	state    PlaceState
	lc       *lifecycle
	value    T
	teardown func(*T) error

	// held for the duration of GetMut callbacks and Deinitialize
	excl sync.Mutex
	// goroutine running a GetMut callback, 0 when none
	owner atomic.Int64
}

// NewPlace returns an empty Place.
func NewPlace[T any](name string) *Place[T] {
	return &Place[T]{name: name}
}

func (p *Place[T]) Name() string { return p.name }

func (p *Place[T]) State() PlaceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Place[T]) Type() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// SetTeardown installs the function Deinitialize runs instead of the value's
// own Close method.
func (p *Place[T]) SetTeardown(fn func(*T) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardown = fn
}

// Initialize reserves the Place for the lifecycle of t and returns the
// write-once slot for its value.
func (p *Place[T]) Initialize(t *InitToken) *Slot[T] {
	const op = "Place.Initialize"
	t.check(op)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PlaceEmpty {
		violate(op, "place %q already initialized (%s)", p.name, p.state)
	}
	p.state = PlaceReserved
	p.lc = t.lc
	return &Slot[T]{place: p}
}

// Peek reads a ready Place while initialization is still running. It lets an
// initializer use beans registered before it.
func (p *Place[T]) Peek(t *InitToken) *T {
	const op = "Place.Peek"
	t.check(op)
	p.ensure(op, t.lc, PlaceReady)
	return &p.value
}

// Get returns shared access to the bean. The pointer is valid until the
// ledger is finalized.
func (p *Place[T]) Get(a *ActiveToken) *T {
	const op = "Place.Get"
	a.check(op)
	p.ensure(op, a.lc, PlaceReady)
	return &p.value
}

// GetMut runs fn with exclusive access to the bean. fn must not retain v.
// Other goroutines calling GetMut wait; calling GetMut or Deinitialize on
// the same Place from inside fn panics.
func (p *Place[T]) GetMut(a *ActiveToken, fn func(v *T)) {
	p.mutate("Place.GetMut", a, fn)
}

func (p *Place[T]) mutate(op string, a *ActiveToken, fn func(v *T)) {
	a.check(op)
	gid := goroutineID()
	p.checkReentry(op, gid)

	p.excl.Lock()
	defer p.excl.Unlock()
	// state may have changed while waiting for excl
	p.ensure(op, a.lc, PlaceReady)

	p.owner.Store(gid)
	defer p.owner.Store(0)
	fn(&p.value)
}

func (p *Place[T]) checkReentry(op string, gid int64) {
	if p.owner.Load() == gid {
		violate(op, "place %q is already held by GetMut on this goroutine", p.name)
	}
}

// Deinitialize releases the bean, running its teardown. It may be called at
// most once; the Place cannot be read afterwards.
func (p *Place[T]) Deinitialize(a *ActiveToken) error {
	const op = "Place.Deinitialize"
	a.check(op)
	p.checkReentry(op, goroutineID())

	p.mu.Lock()
	if p.state == PlaceDropped {
		p.mu.Unlock()
		violate(op, "place %q was already deinitialized", p.name)
	}
	if p.state != PlaceReady {
		state := p.state
		p.mu.Unlock()
		violate(op, "place %q is %s", p.name, state)
	}
	if p.lc != a.lc {
		p.mu.Unlock()
		violate(op, "place %q belongs to lifecycle %s", p.name, p.lc.id)
	}
	p.state = PlaceDropped
	teardown := p.teardown
	p.mu.Unlock()

	p.excl.Lock()
	defer p.excl.Unlock()
	err := release(&p.value, teardown)
	var zero T
	p.value = zero
	return err
}

func (p *Place[T]) ensure(op string, lc *lifecycle, want PlaceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.state == PlaceDropped:
		violate(op, "place %q has been deinitialized", p.name)
	case p.state != want:
		violate(op, "place %q is %s", p.name, p.state)
	case p.lc != lc:
		violate(op, "place %q belongs to lifecycle %s", p.name, p.lc.id)
	}
}

func (p *Place[T]) getAny(op string, a *ActiveToken) any {
	a.check(op)
	p.ensure(op, a.lc, PlaceReady)
	return &p.value
}

func (p *Place[T]) mutAny(op string, a *ActiveToken, fn func(any)) {
	p.mutate(op, a, func(v *T) { fn(v) })
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseInt(string(b), 10, 64)
	return id
}

func release[T any](v *T, teardown func(*T) error) error {
	if teardown != nil {
		return teardown(v)
	}
	for _, candidate := range []any{*v, v} {
		switch c := candidate.(type) {
		case io.Closer:
			return c.Close()
		case interface{ Close() }:
			c.Close()
			return nil
		}
	}
	return nil
}

// ── Slot ──────────────────────────────────────────────────────────────────────

// Slot is the write-once handle returned by Place.Initialize.
type Slot[T any] struct {
	place   *Place[T]
	written bool
}

// Write stores v in the Place and returns a pointer to the stored value.
func (s *Slot[T]) Write(v T) *T {
	const op = "Slot.Write"
	p := s.place
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.written {
		violate(op, "place %q was already written", p.name)
	}
	if ph := p.lc.phase(); ph != PhaseInitializing {
		violate(op, "place %q written while lifecycle is %s", p.name, ph)
	}
	s.written = true
	p.value = v
	p.state = PlaceReady
	return &p.value
}
