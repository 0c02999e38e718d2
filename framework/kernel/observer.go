package kernel

import "time"

// Observer receives lifecycle events. Implementations must not call back
// into the kernel.
type Observer interface {
	PhaseChanged(lifecycle string, from, to Phase)
	EntryInitialized(key Key, took time.Duration, err error)
	EntryFinalized(key Key, took time.Duration, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) PhaseChanged(string, Phase, Phase)          {}
func (NopObserver) EntryInitialized(Key, time.Duration, error) {}
func (NopObserver) EntryFinalized(Key, time.Duration, error)   {}
