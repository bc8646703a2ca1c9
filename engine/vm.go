package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/trace"
)

// ErrShutdown is returned by AttachCurrent once the VM has been closed.
var ErrShutdown = stderrors.New("vm is shut down")

// Options configures VM creation.
type Options struct {
	// Logger receives boundary diagnostics. Defaults to the package
	// logger, which is a no-op unless replaced via SetLogger.
	Logger *zap.Logger

	// Observer, when set, receives attach and detach events.
	Observer trace.Observer

	// MemoryLimitPages caps each guest instance's memory in 64KB pages.
	// 0 means the runtime default (4GB).
	MemoryLimitPages uint32
}

// VM hosts a compiled guest module and hands out per-thread
// environments. It implements the root VM contract and is safe for
// concurrent use; the environments it produces are not.
type VM struct {
	log      *zap.Logger
	observer trace.Observer
	runtime  wazero.Runtime
	compiled wazero.CompiledModule

	mu      sync.Mutex
	threads map[uint64]*threadSlot
	pinned  map[*pinnedClass]struct{}

	seq    atomic.Uint64
	closed atomic.Bool
}

// threadSlot is one registry entry. The environment is held weakly so
// an abandoned thread does not keep its guest instance alive; the
// binding is held strongly so teardown can still run.
type threadSlot struct {
	env weak.Pointer[threadEnv]
	b   *binding
}

// binding ties one thread to one guest instance. It is shared between
// the environment and the cleanup hook so that teardown never needs the
// environment itself; detach runs exactly once no matter who wins.
type binding struct {
	vm       *VM
	tid      uint64
	inst     api.Module
	detached atomic.Bool
}

func (b *binding) detach() {
	if !b.detached.CompareAndSwap(false, true) {
		return
	}

	vm := b.vm
	vm.mu.Lock()
	if slot := vm.threads[b.tid]; slot != nil && slot.b == b {
		delete(vm.threads, b.tid)
	}
	vm.mu.Unlock()

	// Cleanup hooks run without a caller context.
	_ = b.inst.Close(context.Background())

	vm.observe(trace.Event{Type: trace.EventDetach, Thread: b.tid})
	vm.log.Debug("thread detached", zap.Uint64("thread", b.tid))
}

// New compiles guest and returns a VM hosting it. The creating thread
// is attached as part of construction, mirroring how runtime creation
// leaves its caller bound.
func New(ctx context.Context, guest []byte, opts Options) (*VM, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	cfg := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := rt.CompileModule(ctx, guest)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile guest: %w", err)
	}

	vm := &VM{
		log:      log,
		observer: opts.Observer,
		runtime:  rt,
		compiled: compiled,
		threads:  make(map[uint64]*threadSlot),
		pinned:   make(map[*pinnedClass]struct{}),
	}

	if _, err := vm.AttachCurrent(ctx, "main"); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("attach creating thread: %w", err)
	}
	return vm, nil
}

// CurrentEnv reports the environment bound to the calling thread.
func (vm *VM) CurrentEnv() (guestbridge.Env, guestbridge.AttachState) {
	if vm.closed.Load() {
		return nil, guestbridge.StateShutdown
	}

	vm.mu.Lock()
	slot := vm.threads[goid()]
	vm.mu.Unlock()

	if slot == nil || slot.b.detached.Load() {
		return nil, guestbridge.StateDetached
	}
	env := slot.env.Value()
	if env == nil {
		return nil, guestbridge.StateDetached
	}
	return env, guestbridge.StateAttached
}

// AttachCurrent binds the calling thread to a private guest instance.
// Attaching an already-attached thread returns the existing environment.
func (vm *VM) AttachCurrent(ctx context.Context, name string) (guestbridge.Env, error) {
	if vm.closed.Load() {
		return nil, ErrShutdown
	}
	tid := goid()

	vm.mu.Lock()
	if slot := vm.threads[tid]; slot != nil && !slot.b.detached.Load() {
		if env := slot.env.Value(); env != nil {
			vm.mu.Unlock()
			return env, nil
		}
		// Collected but not yet cleaned up; reclaim eagerly.
		stale := slot.b
		vm.mu.Unlock()
		stale.detach()
	} else {
		vm.mu.Unlock()
	}

	if name == "" {
		name = "thread"
	}
	modCfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("%s-%d", name, vm.seq.Add(1)))
	inst, err := vm.runtime.InstantiateModule(ctx, vm.compiled, modCfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate guest for thread %d: %w", tid, err)
	}

	mem := inst.ExportedMemory("memory")
	if mem == nil {
		_ = inst.Close(ctx)
		return nil, fmt.Errorf("guest does not export linear memory")
	}

	b := &binding{vm: vm, tid: tid, inst: inst}
	env := &threadEnv{b: b, mem: mem, funcs: make(map[string]api.Function)}

	// The hook must not capture env, or it would never fire; the binding
	// carries everything teardown needs.
	runtime.AddCleanup(env, func(b *binding) { b.detach() }, b)

	vm.mu.Lock()
	if vm.closed.Load() {
		vm.mu.Unlock()
		b.detach()
		return nil, ErrShutdown
	}
	vm.threads[tid] = &threadSlot{env: weak.Make(env), b: b}
	vm.mu.Unlock()

	vm.observe(trace.Event{Type: trace.EventAttach, Thread: tid, Detail: name})
	vm.log.Debug("thread attached", zap.Uint64("thread", tid), zap.String("name", name))
	return env, nil
}

// Detach unbinds the thread identified by token. Unknown or already
// detached tokens are ignored.
func (vm *VM) Detach(token uint64) {
	vm.mu.Lock()
	slot := vm.threads[token]
	vm.mu.Unlock()

	if slot != nil {
		slot.b.detach()
	}
}

// Close detaches every remaining thread and releases the runtime.
// Closing twice is a no-op.
func (vm *VM) Close(ctx context.Context) error {
	if !vm.closed.CompareAndSwap(false, true) {
		return nil
	}

	vm.mu.Lock()
	slots := make([]*threadSlot, 0, len(vm.threads))
	for _, s := range vm.threads {
		slots = append(slots, s)
	}
	leaked := len(vm.pinned)
	vm.mu.Unlock()

	for _, s := range slots {
		s.b.detach()
	}
	if leaked > 0 {
		vm.log.Warn("pinned class references still held at shutdown",
			zap.Int("count", leaked))
	}
	return vm.runtime.Close(ctx)
}

func (vm *VM) observe(e trace.Event) {
	if vm.observer != nil {
		vm.observer.OnBoundaryEvent(e)
	}
}

func (vm *VM) pin(p *pinnedClass) {
	vm.mu.Lock()
	vm.pinned[p] = struct{}{}
	vm.mu.Unlock()
}

func (vm *VM) unpin(p *pinnedClass) {
	vm.mu.Lock()
	delete(vm.pinned, p)
	vm.mu.Unlock()
}

var _ guestbridge.VM = (*VM)(nil)
