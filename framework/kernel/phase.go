package kernel

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ── Phases ────────────────────────────────────────────────────────────────────

// Phase is a stage of the one-way kernel lifecycle.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseActive
	PhaseFinalizing
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseActive:
		return "active"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// lifecycle is the state shared by every token minted from one Guard
// acquisition. Places remember the lifecycle that initialized them.
type lifecycle struct {
	id       string
	state    atomic.Int32
	observer Observer
}

func (lc *lifecycle) phase() Phase { return Phase(lc.state.Load()) }

func (lc *lifecycle) advance(op string, from, to Phase) {
	if !lc.state.CompareAndSwap(int32(from), int32(to)) {
		violate(op, "lifecycle %s is %s, want %s", lc.id, lc.phase(), from)
	}
	if lc.observer != nil {
		lc.observer.PhaseChanged(lc.id, from, to)
	}
}

// ── Guard ─────────────────────────────────────────────────────────────────────

// Guard is a single-use latch. Acquire hands out the Uninitialized token
// exactly once; every later call fails with DuplicatedInitError.
type Guard struct {
	name  string
	taken atomic.Bool
}

// NewGuard returns a fresh latch for the named resource.
func NewGuard(name string) *Guard {
	return &Guard{name: name}
}

var processGuard = NewGuard("kernel")

// AcquireUninitialized takes the process-wide Uninitialized token.
//
//	u, err := kernel.AcquireUninitialized()
//	if err != nil { ... } // kernel.ErrDuplicatedInit on every call after the first
func AcquireUninitialized() (*UninitToken, error) {
	return processGuard.Acquire()
}

// Name returns the guarded resource name.
func (g *Guard) Name() string { return g.name }

// Taken reports whether the guard has already been acquired.
func (g *Guard) Taken() bool { return g.taken.Load() }

// Acquire takes the Uninitialized token for this guard.
func (g *Guard) Acquire() (*UninitToken, error) {
	if !g.taken.CompareAndSwap(false, true) {
		return nil, &DuplicatedInitError{Resource: g.name}
	}
	lc := &lifecycle{id: uuid.NewString()}
	return &UninitToken{token: token{lc: lc}}, nil
}

// ── Tokens ────────────────────────────────────────────────────────────────────

type token struct {
	lc    *lifecycle
	spent atomic.Bool
}

func (t *token) consume(op string) {
	if !t.spent.CompareAndSwap(false, true) {
		violate(op, "token for lifecycle %s was already consumed", t.lc.id)
	}
}

// UninitToken exists at most once per Guard. BeginInit consumes it.
type UninitToken struct {
	token
}

// InitToken authorizes Place initialization. It becomes sealed once
// Ledger.RunInit has seen every initializer succeed, and only a sealed token
// can be exchanged for an ActiveToken.
type InitToken struct {
	token
	ran    atomic.Bool
	sealed atomic.Bool
}

// ActiveToken authorizes reads and writes on initialized Places, and
// finalization of the ledger.
type ActiveToken struct {
	token
}

// BeginInit consumes u and starts the initialization phase.
func BeginInit(u *UninitToken) *InitToken {
	const op = "BeginInit"
	if u == nil || u.lc == nil {
		violate(op, "nil uninitialized token")
	}
	u.consume(op)
	u.lc.advance(op, PhaseUninitialized, PhaseInitializing)
	return &InitToken{token: token{lc: u.lc}}
}

// CompleteInit irreversibly exchanges a sealed InitToken for the ActiveToken.
// Calling it before Ledger.RunInit succeeded on t panics.
func CompleteInit(t *InitToken) *ActiveToken {
	const op = "CompleteInit"
	t.check(op)
	if !t.sealed.Load() {
		violate(op, "initializers have not all completed for lifecycle %s", t.lc.id)
	}
	t.consume(op)
	t.lc.advance(op, PhaseInitializing, PhaseActive)
	return &ActiveToken{token: token{lc: t.lc}}
}

func (t *InitToken) check(op string) {
	if t == nil || t.lc == nil {
		violate(op, "nil init token")
	}
	if t.spent.Load() {
		violate(op, "init token for lifecycle %s was already consumed", t.lc.id)
	}
	if p := t.lc.phase(); p != PhaseInitializing {
		violate(op, "lifecycle %s is %s, not initializing", t.lc.id, p)
	}
}

// Sealed reports whether every registered initializer ran against t.
func (t *InitToken) Sealed() bool { return t.sealed.Load() }

func (a *ActiveToken) check(op string) {
	if a == nil || a.lc == nil {
		violate(op, "nil active token")
	}
	switch p := a.lc.phase(); p {
	case PhaseActive, PhaseFinalizing:
	default:
		violate(op, "lifecycle %s is %s", a.lc.id, p)
	}
}

// Phase returns the current phase of the token's lifecycle.
func (a *ActiveToken) Phase() Phase { return a.lc.phase() }

// LifecycleID identifies the activation cycle the token belongs to.
func (a *ActiveToken) LifecycleID() string { return a.lc.id }
