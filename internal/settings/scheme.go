package settings

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// ColorScheme is the OS-level light/dark preference signal.
type ColorScheme interface {
	IsDark() bool
	// Subscribe registers fn for change notifications and returns a func
	// that removes it.
	Subscribe(fn func(dark bool)) (unsubscribe func())
}

// SchemeSignal is a ColorScheme whose value is reported from outside, for
// example by a browser forwarding its prefers-color-scheme media query.
type SchemeSignal struct {
	mu        sync.Mutex
	dark      bool
	listeners *xsync.Map[uint64, func(bool)]
	nextID    atomic.Uint64
}

func NewSchemeSignal(dark bool) *SchemeSignal {
	return &SchemeSignal{
		dark:      dark,
		listeners: xsync.NewMap[uint64, func(bool)](),
	}
}

func (s *SchemeSignal) IsDark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark
}

// Set records the current preference and notifies subscribers when it
// changed.
func (s *SchemeSignal) Set(dark bool) {
	s.mu.Lock()
	changed := s.dark != dark
	s.dark = dark
	s.mu.Unlock()

	if !changed {
		return
	}
	s.listeners.Range(func(_ uint64, fn func(bool)) bool {
		fn(dark)
		return true
	})
}

func (s *SchemeSignal) Subscribe(fn func(dark bool)) func() {
	id := s.nextID.Add(1)
	s.listeners.Store(id, fn)
	return func() { s.listeners.Delete(id) }
}

// Subscribers reports how many subscriptions are live.
func (s *SchemeSignal) Subscribers() int {
	return s.listeners.Size()
}
