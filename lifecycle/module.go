// Package lifecycle drives the module's load and unload edges: binding
// sets are populated on load, released on unload, and the state machine
// rejects out-of-order transitions.
package lifecycle

import (
	"sync/atomic"

	"go.uber.org/zap"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
	"github.com/wippyai/guest-bridge/trace"
)

// Version is reported to the loader on a successful OnLoad. Loaders
// reject anything below the version they were built against.
const Version = "1.0"

// State is the module's position in the load/unload cycle.
type State uint32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	}
	return "invalid"
}

// BindingSet is one load-time unit of class and member resolution.
// Populate must retain nothing on failure; Release must tolerate being
// called more than once.
type BindingSet interface {
	Populate(env guestbridge.Env) error
	Release()
}

// Config carries the module's ambient dependencies.
type Config struct {
	Logger   *zap.Logger
	Observer trace.Observer
}

// Module owns the load lifecycle of a set of bindings.
type Module struct {
	log      *zap.Logger
	observer trace.Observer
	sets     []BindingSet
	state    atomic.Uint32
}

// New creates an unloaded module over the given binding sets.
func New(cfg Config, sets ...BindingSet) *Module {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{log: log, observer: cfg.Observer, sets: sets}
}

// State returns the current lifecycle state.
func (m *Module) State() State {
	return State(m.state.Load())
}

// OnLoad populates every binding set through the calling thread's
// environment and reports the version on success. The caller must
// already be attached to vm; OnLoad never attaches on its own.
//
// A population failure releases the sets populated so far and returns
// the module to unloaded, so a failed load retains nothing.
func (m *Module) OnLoad(vm guestbridge.VM) (string, error) {
	if !m.state.CompareAndSwap(uint32(StateUnloaded), uint32(StateLoading)) {
		return "", errors.BadState("load attempted in state " + m.State().String())
	}

	env, state := vm.CurrentEnv()
	if state != guestbridge.StateAttached {
		m.state.Store(uint32(StateUnloaded))
		return "", errors.BadState("loading thread is not attached: " + state.String())
	}

	for i, set := range m.sets {
		if err := set.Populate(env); err != nil {
			for _, done := range m.sets[:i] {
				done.Release()
			}
			m.state.Store(uint32(StateUnloaded))
			m.log.Error("binding population failed", zap.Error(err))
			return "", errors.PopulateFailed(err)
		}
		m.observe(trace.Event{Type: trace.EventPopulate, Thread: env.Thread()})
	}

	m.state.Store(uint32(StateLoaded))
	m.log.Info("module loaded", zap.String("version", Version), zap.Int("binding_sets", len(m.sets)))
	return Version, nil
}

// OnUnload releases every binding set. It is best effort: calling it on
// a module that never loaded, or twice, is a no-op.
func (m *Module) OnUnload(vm guestbridge.VM) {
	if !m.state.CompareAndSwap(uint32(StateLoaded), uint32(StateUnloading)) {
		return
	}

	for _, set := range m.sets {
		set.Release()
	}
	m.observe(trace.Event{Type: trace.EventRelease})
	m.state.Store(uint32(StateUnloaded))
	m.log.Info("module unloaded")
}

func (m *Module) observe(e trace.Event) {
	if m.observer != nil {
		m.observer.OnBoundaryEvent(e)
	}
}
