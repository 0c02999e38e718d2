package kernel

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option configures a Kernel.
type Option func(*Kernel)

// WithGuard replaces the process-wide guard, e.g. to run several kernels in
// one test binary.
func WithGuard(g *Guard) Option {
	return func(k *Kernel) { k.guard = g }
}

// WithLogger sets the kernel logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithObserver receives phase and entry events.
func WithObserver(o Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithFinalizeOrder overrides the default reverse teardown order.
func WithFinalizeOrder(o FinalizeOrder) Option {
	return func(k *Kernel) { k.order = o }
}

// ── Kernel ────────────────────────────────────────────────────────────────────

// Kernel drives one activation cycle:
//
//	k := kernel.New()
//	counter := kernel.Define(k.Ledger(), newCounter)
//	root, err := k.Boot(cfg, kernel.Bindings{"Speaker": kernel.KeyOf[Greeter]()})
//	...
//	err = k.Shutdown()
//
// Boot runs AcquireUninitialized, BeginInit, RunInit, CompleteInit, builds the
// root Context and then runs the OnActive hooks. Shutdown runs RunFinalize.
type Kernel struct {
	mu       sync.Mutex
	guard    *Guard
	ledger   *Ledger
	log      zerolog.Logger
	observer Observer
	order    FinalizeOrder

	lc       *lifecycle
	registry *Registry
	active   *ActiveToken
	root     *Context
}

// New returns a kernel with an empty ledger.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		guard:    processGuard,
		log:      log.Logger,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(k)
	}
	k.ledger = NewLedger()
	k.ledger.log = k.log
	k.ledger.observer = k.observer
	k.ledger.order = k.order
	return k
}

// Ledger returns the ledger beans register into before Boot.
func (k *Kernel) Ledger() *Ledger { return k.ledger }

// Boot activates the kernel. Any error aborts startup; places initialized
// before the failing entry are not rolled back. If an OnActive hook fails the
// kernel is already active: Boot returns the root context together with the
// error, and the caller still owns Shutdown.
func (k *Kernel) Boot(cfg ConfigSource, aliases Bindings) (*Context, error) {
	root, err := k.activate(cfg, aliases)
	if err != nil {
		return nil, err
	}

	logger := k.log.With().Str("lifecycle", root.active.LifecycleID()).Logger()
	if err := k.ledger.runActivators(root); err != nil {
		logger.Error().Err(err).Msg("kernel activation hook failed")
		return root, err
	}
	logger.Info().Int("beans", len(root.registry.order)).Int("aliases", len(root.table)).Msg("kernel active")
	return root, nil
}

func (k *Kernel) activate(cfg ConfigSource, aliases Bindings) (*Context, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if cfg == nil {
		cfg = NoConfig{}
	}

	uninit, err := k.guard.Acquire()
	if err != nil {
		return nil, err
	}
	uninit.lc.observer = k.observer
	k.lc = uninit.lc
	logger := k.log.With().Str("lifecycle", k.lc.id).Logger()

	reg, err := NewRegistry(k.ledger)
	if err != nil {
		logger.Error().Err(err).Msg("kernel registration invalid")
		return nil, err
	}

	initTok := BeginInit(uninit)
	logger.Debug().Int("entries", k.ledger.Len()).Msg("kernel initializing")
	if err := k.ledger.RunInit(initTok, cfg); err != nil {
		logger.Error().Err(err).Strs("initialized", readyKeys(reg)).Msg("kernel startup aborted")
		return nil, err
	}

	active := CompleteInit(initTok)
	root, err := NewRootContext("root", reg, active, aliases)
	if err != nil {
		logger.Error().Err(err).Msg("kernel root context invalid")
		return nil, err
	}
	k.registry, k.active, k.root = reg, active, root
	return root, nil
}

// Shutdown finalizes every bean. It panics if the kernel never became
// active or was already shut down.
func (k *Kernel) Shutdown() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.active == nil {
		violate("Kernel.Shutdown", "kernel is not active")
	}
	logger := k.log.With().Str("lifecycle", k.lc.id).Logger()
	err := k.ledger.RunFinalize(k.active)
	if err != nil {
		logger.Warn().Err(err).Msg("kernel finalized with errors")
		return err
	}
	logger.Info().Msg("kernel finalized")
	return nil
}

// Phase returns the current lifecycle phase.
func (k *Kernel) Phase() Phase {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.lc == nil {
		return PhaseUninitialized
	}
	return k.lc.phase()
}

// LifecycleID returns the activation cycle ID, empty before Boot.
func (k *Kernel) LifecycleID() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.lc == nil {
		return ""
	}
	return k.lc.id
}

// Root returns the root context, nil before a successful Boot.
func (k *Kernel) Root() *Context {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.root
}

// Registry returns the registry, nil before a successful Boot.
func (k *Kernel) Registry() *Registry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.registry
}

func readyKeys(r *Registry) []string {
	var out []string
	for _, key := range r.order {
		if r.cells[key].State() == PlaceReady {
			out = append(out, string(key))
		}
	}
	return out
}
