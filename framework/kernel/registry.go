package kernel

import (
	"reflect"
)

// Key identifies a registered bean.
type Key string

func (k Key) String() string { return string(k) }

// KeyOf returns the package-qualified type name of T, with pointers
// stripped, for use as the default key of a bean:
//
//	kernel.KeyOf[Counter]()  // "example.com/app.Counter"
func KeyOf[T any]() Key {
	return Key(typeName(reflect.TypeOf((*T)(nil)).Elem()))
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ── Registry ──────────────────────────────────────────────────────────────────

// Registry maps keys to the Places registered in a ledger.
type Registry struct {
	cells map[Key]Cell
	order []Key
}

// BeanInfo describes one registry entry.
type BeanInfo struct {
	Key   Key    `json:"key"`
	Type  string `json:"type"`
	Place string `json:"place"`
	State string `json:"state"`
}

// NewRegistry indexes the ledger's entries by key. Two entries with the same
// key are a configuration error.
func NewRegistry(l *Ledger) (*Registry, error) {
	r := &Registry{cells: make(map[Key]Cell)}
	seen := make(map[Key]int)
	for i, e := range l.Entries() {
		if e.Place == nil || e.Key == "" {
			continue
		}
		if first, dup := seen[e.Key]; dup {
			return nil, &DuplicateKeyError{Key: e.Key, First: first, Second: i}
		}
		seen[e.Key] = i
		r.cells[e.Key] = e.Place
		r.order = append(r.order, e.Key)
	}
	return r, nil
}

// Lookup returns the Place bound to k.
func (r *Registry) Lookup(k Key) (Cell, error) {
	cell, ok := r.cells[k]
	if !ok {
		return nil, &UnregisteredKeyError{Key: k}
	}
	return cell, nil
}

// Has reports whether k is registered.
func (r *Registry) Has(k Key) bool {
	_, ok := r.cells[k]
	return ok
}

// Keys returns registered keys in registration order.
func (r *Registry) Keys() []Key {
	return append([]Key(nil), r.order...)
}

// Describe lists every entry with its current place state.
func (r *Registry) Describe() []BeanInfo {
	out := make([]BeanInfo, 0, len(r.order))
	for _, k := range r.order {
		cell := r.cells[k]
		out = append(out, BeanInfo{
			Key:   k,
			Type:  cell.Type().String(),
			Place: cell.Name(),
			State: cell.State().String(),
		})
	}
	return out
}

// ── Typed lookup ──────────────────────────────────────────────────────────────

func lookupTyped[T any](r *Registry, k Key) (Cell, error) {
	cell, err := r.Lookup(k)
	if err != nil {
		return nil, err
	}
	want := reflect.TypeOf((*T)(nil)).Elem()
	if cell.Type() != want {
		return nil, &TypeMismatchError{Key: k, Want: want.String(), Got: cell.Type().String()}
	}
	return cell, nil
}

// GetByKey returns shared access to the bean registered under k.
//
//	counter, err := kernel.GetByKey[Counter](ctx, kernel.KeyOf[Counter]())
func GetByKey[T any](c *Context, k Key) (*T, error) {
	cell, err := lookupTyped[T](c.registry, k)
	if err != nil {
		return nil, err
	}
	return cell.getAny("GetByKey", c.active).(*T), nil
}

// GetMutByKey runs fn with exclusive access to the bean registered under k.
func GetMutByKey[T any](c *Context, k Key, fn func(*T)) error {
	cell, err := lookupTyped[T](c.registry, k)
	if err != nil {
		return err
	}
	cell.mutAny("GetMutByKey", c.active, func(v any) { fn(v.(*T)) })
	return nil
}
