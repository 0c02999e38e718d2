package kernel

import (
	"errors"
	"fmt"
	"strings"
)

// ── Sentinels ─────────────────────────────────────────────────────────────────

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrDuplicatedInit  = errors.New("duplicated initialization")
	ErrConfig          = errors.New("configuration error")
	ErrUnregisteredKey = errors.New("key not registered")
	ErrUnboundAlias    = errors.New("alias not bound")
	ErrAmbiguousAlias  = errors.New("ambiguous alias")
)

var errValueMissing = errors.New("value not found")

// ── Lifecycle errors ──────────────────────────────────────────────────────────

// DuplicatedInitError is returned when a Guard is acquired a second time.
type DuplicatedInitError struct {
	Resource string
}

func (e *DuplicatedInitError) Error() string {
	return fmt.Sprintf("kernel: initialization for %q has already been done", e.Resource)
}

func (e *DuplicatedInitError) Is(target error) bool { return target == ErrDuplicatedInit }

// InitError tags an initializer failure with the ledger entry that produced it.
type InitError struct {
	Key   Key
	Index int
	Err   error
}

func (e *InitError) Error() string {
	name := string(e.Key)
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("kernel: initializer #%d [%s] failed: %v", e.Index, name, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ── Configuration errors ──────────────────────────────────────────────────────

// ConfigError reports a configuration lookup that was missing or could not be
// decoded into the requested type.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("kernel: config %q: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DuplicateKeyError is reported while building a Registry when two ledger
// entries claim the same Key. It is a configuration error.
type DuplicateKeyError struct {
	Key           Key
	First, Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("kernel: key [%s] registered twice (entries #%d and #%d)", e.Key, e.First, e.Second)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrConfig }

// ── Lookup errors ─────────────────────────────────────────────────────────────

// UnregisteredKeyError is returned when no ledger entry exists for a Key.
type UnregisteredKeyError struct {
	Key Key
}

func (e *UnregisteredKeyError) Error() string {
	return fmt.Sprintf("kernel: no bean registered for [%s]", e.Key)
}

func (e *UnregisteredKeyError) Is(target error) bool { return target == ErrUnregisteredKey }

// UnboundAliasError is returned when neither a Context nor any of the
// contexts it wraps binds an alias.
type UnboundAliasError struct {
	Alias   Alias
	Context string
}

func (e *UnboundAliasError) Error() string {
	return fmt.Sprintf("kernel: alias [%s] is not bound in context %q", e.Alias, e.Context)
}

func (e *UnboundAliasError) Is(target error) bool { return target == ErrUnboundAlias }

// AmbiguousAliasError rejects a composition that inherits one alias through
// two parents bound to different keys.
type AmbiguousAliasError struct {
	Alias   Alias
	Context string
	Paths   []string
}

func (e *AmbiguousAliasError) Error() string {
	return fmt.Sprintf("kernel: alias [%s] is ambiguous in context %q: %s",
		e.Alias, e.Context, strings.Join(e.Paths, ", "))
}

func (e *AmbiguousAliasError) Is(target error) bool { return target == ErrAmbiguousAlias }

// TypeMismatchError is returned by the typed lookups when the bean stored
// under a key is not of the requested type.
type TypeMismatchError struct {
	Key  Key
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("kernel: [%s] holds %s, not %s", e.Key, e.Got, e.Want)
}

// ── Contract violations ───────────────────────────────────────────────────────

// ContractViolation is the panic value for programming errors: using a token
// out of phase, touching a Place before it is initialized or after it is
// dropped, double initialization, double finalization. It is never returned.
type ContractViolation struct {
	Op     string
	Detail string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("kernel: contract violation in %s: %s", e.Op, e.Detail)
}

func violate(op, format string, args ...any) {
	panic(&ContractViolation{Op: op, Detail: fmt.Sprintf(format, args...)})
}
