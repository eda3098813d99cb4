package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	ErrNoModules        = errors.New("no module enabled")
	ErrWorkersCollapsed = errors.New("every worker terminated")
	ErrDuplicateModule  = errors.New("duplicate module name")
	ErrMissingParam     = errors.New("missing mandatory parameter")
)

// PanicError is returned by Handle.Do when the module panicked.
type PanicError struct {
	Module string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("module %s panicked: %v", e.Module, e.Value)
}

// Handle wraps a module for exclusive access from many goroutines.
type Handle struct {
	name string
	mod  Module
	lock chan struct{}
}

func NewHandle(m Module) *Handle {
	return &Handle{name: m.Name(), mod: m, lock: make(chan struct{}, 1)}
}

func (h *Handle) Name() string { return h.name }

// Do runs fn with exclusive access to the module. It returns ctx.Err() if the
// lock could not be acquired before ctx was done, and a *PanicError if fn panicked.
// The lock is always released.
func (h *Handle) Do(ctx context.Context, fn func(m Module)) (err error) {
	select {
	case h.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.lock }()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Module: h.name, Value: r, Stack: string(debug.Stack())}
		}
	}()
	fn(h.mod)
	return nil
}

// Entry is one module as seen in the registry snapshot.
type Entry struct {
	Handle       *Handle
	Name         string
	Capabilities Capabilities
	Variations   []Variation
	Params       []Param
}

// Registry holds registered modules in registration order.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Add wraps m in a handle and records its metadata, queried once here.
func (r *Registry) Add(m Module) (Entry, error) {
	name := m.Name()
	if _, dup := r.names[name]; dup {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}
	caps := m.Capabilities()
	caps.Triggers = append([]string(nil), caps.Triggers...)
	e := Entry{
		Handle:       NewHandle(m),
		Name:         name,
		Capabilities: caps,
		Variations:   append([]Variation(nil), m.Variations()...),
		Params:       append([]Param(nil), m.Params()...),
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *Registry) Len() int { return len(r.entries) }

// Snapshot returns a copy of the entries; the copy is never mutated afterwards.
func (r *Registry) Snapshot() []Entry {
	return append([]Entry(nil), r.entries...)
}
