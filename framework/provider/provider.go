package provider

import (
	"fmt"
	"sync"

	"github.com/km-arc/go-beans/framework/kernel"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the beans of one feature.
//
// Register is called while the ledger is still open and must only define
// beans. Boot runs once the kernel is active, after every provider has been
// registered, and may read any bean.
//
//	type GreeterProvider struct {
//	    provider.BaseProvider
//	    greeter *kernel.Bean[Greeter]
//	}
//
//	func (p *GreeterProvider) Register(l *kernel.Ledger) {
//	    p.greeter = kernel.Define(l, newGreeter)
//	}
//
//	func (p *GreeterProvider) Boot(ctx *kernel.Context) error {
//	    fmt.Println(p.greeter.Get(ctx).Greet("world"))
//	    return nil
//	}
type ServiceProvider interface {
	// Register defines beans on the ledger. Do NOT read beans here.
	Register(l *kernel.Ledger)

	// Boot is called after activation, in registration order.
	Boot(ctx *kernel.Context) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op Boot.
//
//	type MyProvider struct{ provider.BaseProvider }
//	func (p *MyProvider) Register(l *kernel.Ledger) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *kernel.Context) error { return nil }

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry registers providers against one ledger, in order, each at most
// once. Each provider's Boot becomes an activation hook on the ledger, so
// providers boot in the order they were registered.
type Registry struct {
	mu         sync.Mutex
	ledger     *kernel.Ledger
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     map[ServiceProvider]bool
}

// NewRegistry creates a registry bound to l.
func NewRegistry(l *kernel.Ledger) *Registry {
	return &Registry{
		ledger:     l,
		registered: make(map[ServiceProvider]bool),
		booted:     make(map[ServiceProvider]bool),
	}
}

// Register calls p.Register and queues p.Boot. Registering the same provider
// twice is a no-op. Registering after the kernel booted panics with a
// kernel.ContractViolation.
func (r *Registry) Register(p ServiceProvider) {
	r.mu.Lock()
	if r.registered[p] {
		r.mu.Unlock()
		return
	}
	r.registered[p] = true
	r.providers = append(r.providers, p)
	r.mu.Unlock()

	p.Register(r.ledger)
	r.ledger.OnActive(Name(p), func(ctx *kernel.Context) error {
		if err := p.Boot(ctx); err != nil {
			return err
		}
		r.mu.Lock()
		r.booted[p] = true
		r.mu.Unlock()
		return nil
	})
}

// Booted reports whether p's Boot has completed.
func (r *Registry) Booted(p ServiceProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted[p]
}

// Providers returns the registered providers in order.
func (r *Registry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.providers...)
}

// Name returns a provider's type name, used to label its activation hook.
func Name(p ServiceProvider) string {
	return fmt.Sprintf("%T", p)
}
