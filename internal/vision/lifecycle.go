package vision

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// State is the lifecycle stage of a backend.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Factory constructs a backend. It may block while native libraries load.
type Factory func(ctx context.Context) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend factory available by name. Backend packages call
// it from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("vision: Register called twice for backend " + name)
	}
	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered backends in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loader owns one backend and walks it through
// Unloaded -> Loading -> Ready | Failed. A failed loader may be retried.
type Loader struct {
	name    string
	factory Factory

	mu       sync.Mutex
	state    State
	backend  Backend
	err      error
	done     chan struct{}
	onChange []func(State)
}

// NewLoader returns an unloaded loader for factory.
func NewLoader(name string, factory Factory) *Loader {
	return &Loader{name: name, factory: factory}
}

// NewNamedLoader returns a loader for a registered backend.
func NewNamedLoader(name string) (*Loader, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (available: %v)", ErrBackendUnavailable, name, Names())
	}
	return NewLoader(name, f), nil
}

// ReadyLoader wraps an already constructed backend.
func ReadyLoader(b Backend) *Loader {
	return &Loader{name: b.Name(), state: StateReady, backend: b}
}

// Name returns the backend name.
func (l *Loader) Name() string {
	return l.name
}

// OnChange registers fn to be called after every state transition.
func (l *Loader) OnChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// State returns the current lifecycle stage.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error of the last failed load.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Load runs the factory unless the backend is already ready. Concurrent
// callers wait for the load in flight.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateLoading:
		done := l.done
		l.mu.Unlock()
		select {
		case <-done:
			return l.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.state = StateLoading
	l.err = nil
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()
	l.notify(StateLoading)

	log.Info().Str("backend", l.name).Msg("Vision: loading backend")
	b, err := l.factory(ctx)

	l.mu.Lock()
	if err != nil {
		l.state = StateFailed
		l.err = fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, l.name, err)
	} else {
		l.state = StateReady
		l.backend = b
	}
	state, loadErr := l.state, l.err
	close(done)
	l.mu.Unlock()

	if loadErr != nil {
		log.Error().Err(err).Str("backend", l.name).Msg("Vision: backend failed to load")
	} else {
		log.Info().Str("backend", l.name).Msg("Vision: backend ready")
	}
	l.notify(state)
	return loadErr
}

// Backend returns the ready backend or ErrBackendUnavailable.
func (l *Loader) Backend() (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		if l.err != nil {
			return nil, l.err
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrBackendUnavailable, l.name, l.state)
	}
	return l.backend, nil
}

func (l *Loader) notify(s State) {
	l.mu.Lock()
	fns := append([]func(State){}, l.onChange...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
