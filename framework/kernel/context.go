package kernel

import (
	"fmt"
	"sort"
)

// Alias is an abstract role name that a Context resolves to a Key.
type Alias string

func (a Alias) String() string { return string(a) }

// Bindings declares alias → key mappings for one Context.
type Bindings map[Alias]Key

type binding struct {
	key    Key
	origin string // name of the context that declared it
}

// AliasInfo describes one resolved alias of a Context.
type AliasInfo struct {
	Alias  Alias  `json:"alias"`
	Key    Key    `json:"key"`
	Origin string `json:"origin"`
}

// ── Context ───────────────────────────────────────────────────────────────────

// Context is a composition handle over the active kernel. It exposes typed
// lookups by key and by alias. A Context wraps zero or more parents: aliases
// it does not declare are inherited from them, aliases it declares shadow
// theirs. The alias table is fixed when the Context is built.
type Context struct {
	name     string
	registry *Registry
	active   *ActiveToken
	parents  []*Context
	table    map[Alias]binding
}

// NewRootContext builds the top-level Context for an active kernel.
func NewRootContext(name string, reg *Registry, a *ActiveToken, own Bindings) (*Context, error) {
	a.check("NewRootContext")
	return compose(name, reg, a, nil, own)
}

func compose(name string, reg *Registry, a *ActiveToken, parents []*Context, own Bindings) (*Context, error) {
	for _, alias := range sortedAliases(own) {
		if _, err := reg.Lookup(own[alias]); err != nil {
			return nil, fmt.Errorf("kernel: context %q: bind [%s]: %w", name, alias, err)
		}
	}

	table := make(map[Alias]binding)
	via := make(map[Alias]string)
	for _, p := range parents {
		for _, alias := range sortedAliases(p.table) {
			if _, local := own[alias]; local {
				continue
			}
			b := p.table[alias]
			cur, seen := table[alias]
			if !seen {
				table[alias] = b
				via[alias] = p.name
				continue
			}
			if cur.key != b.key {
				return nil, &AmbiguousAliasError{
					Alias:   alias,
					Context: name,
					Paths: []string{
						fmt.Sprintf("%s -> %s (declared by %s)", via[alias], cur.key, cur.origin),
						fmt.Sprintf("%s -> %s (declared by %s)", p.name, b.key, b.origin),
					},
				}
			}
		}
	}
	for alias, key := range own {
		table[alias] = binding{key: key, origin: name}
	}

	return &Context{
		name:     name,
		registry: reg,
		active:   a,
		parents:  parents,
		table:    table,
	}, nil
}

func sortedAliases[V any](m map[Alias]V) []Alias {
	out := make([]Alias, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Name returns the context name.
func (c *Context) Name() string { return c.name }

// Parent returns the first wrapped context, or nil for a root.
func (c *Context) Parent() *Context {
	if len(c.parents) == 0 {
		return nil
	}
	return c.parents[0]
}

// Parents returns every wrapped context in declaration order.
func (c *Context) Parents() []*Context { return append([]*Context(nil), c.parents...) }

// Registry returns the registry the context reads from.
func (c *Context) Registry() *Registry { return c.registry }

// Phase returns the lifecycle phase the context observes.
func (c *Context) Phase() Phase { return c.active.Phase() }

// Resolve maps an alias to the key it names in this context.
func (c *Context) Resolve(alias Alias) (Key, error) {
	b, ok := c.table[alias]
	if !ok {
		return "", &UnboundAliasError{Alias: alias, Context: c.name}
	}
	return b.key, nil
}

// Aliases lists the resolved alias table, sorted by alias.
func (c *Context) Aliases() []AliasInfo {
	out := make([]AliasInfo, 0, len(c.table))
	for _, alias := range sortedAliases(c.table) {
		b := c.table[alias]
		out = append(out, AliasInfo{Alias: alias, Key: b.key, Origin: b.origin})
	}
	return out
}

// GetByAlias resolves alias in c and returns shared access to its bean.
//
//	speaker, err := kernel.GetByAlias[Greeter](ctx, "Speaker")
func GetByAlias[T any](c *Context, alias Alias) (*T, error) {
	k, err := c.Resolve(alias)
	if err != nil {
		return nil, err
	}
	return GetByKey[T](c, k)
}

// GetMutByAlias resolves alias in c and runs fn with exclusive access.
func GetMutByAlias[T any](c *Context, alias Alias, fn func(*T)) error {
	k, err := c.Resolve(alias)
	if err != nil {
		return err
	}
	return GetMutByKey[T](c, k, fn)
}

// ── Composition ───────────────────────────────────────────────────────────────

// ContextBuilder implements the fluent composition API.
//
//	module, err := root.Compose("module").
//	    Bind("Speaker", kernel.KeyOf[Greeter]()).
//	    Build()
//
//	mod2, err := module.Compose("mod2").
//	    Extends(other).
//	    Bind("Handler", kernel.KeyOf[SomeNeedA]()).
//	    Build()
type ContextBuilder struct {
	name    string
	parents []*Context
	own     Bindings
}

// Compose starts a child context that wraps c.
func (c *Context) Compose(name string) *ContextBuilder {
	return &ContextBuilder{name: name, parents: []*Context{c}, own: make(Bindings)}
}

// Extends adds further parents. Aliases inherited from more than one parent
// must agree on the key unless the child binds the alias itself.
func (b *ContextBuilder) Extends(others ...*Context) *ContextBuilder {
	b.parents = append(b.parents, others...)
	return b
}

// Bind declares alias → key on the new context, shadowing any parent binding.
func (b *ContextBuilder) Bind(alias Alias, key Key) *ContextBuilder {
	b.own[alias] = key
	return b
}

// BindAll declares several bindings at once.
func (b *ContextBuilder) BindAll(bindings Bindings) *ContextBuilder {
	for alias, key := range bindings {
		b.own[alias] = key
	}
	return b
}

// Build validates the composition and returns the context.
func (b *ContextBuilder) Build() (*Context, error) {
	const op = "ContextBuilder.Build"
	first := b.parents[0]
	first.active.check(op)
	for _, p := range b.parents[1:] {
		if p.active.lc != first.active.lc || p.registry != first.registry {
			violate(op, "context %q mixes parents from different kernels", b.name)
		}
	}
	return compose(b.name, first.registry, first.active, b.parents, b.own)
}

// MustBuild is like Build but panics on error.
func (b *ContextBuilder) MustBuild() *Context {
	ctx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return ctx
}
