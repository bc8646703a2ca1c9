package engine

import (
	"context"
	"sync"
	"testing"

	"go.bytecodealliance.org/wit"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
	"github.com/wippyai/guest-bridge/trace"
	"github.com/wippyai/guest-bridge/wasmgen"
)

const testClass = "rapids:memory/host-buffer"

func newTestVM(t *testing.T, opts Options) *VM {
	t.Helper()
	vm, err := New(context.Background(), wasmgen.SyntheticHostBuffer(testClass), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = vm.Close(context.Background()) })
	return vm
}

func TestNewAttachesCreator(t *testing.T) {
	vm := newTestVM(t, Options{})

	env, state := vm.CurrentEnv()
	if state != guestbridge.StateAttached {
		t.Fatalf("creating thread state = %v, want attached", state)
	}
	if env == nil {
		t.Fatal("attached state must carry a non-nil env")
	}
	if env.Thread() != goid() {
		t.Errorf("env thread = %d, want %d", env.Thread(), goid())
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	vm := newTestVM(t, Options{})

	a, err := vm.AttachCurrent(context.Background(), "t")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	b, err := vm.AttachCurrent(context.Background(), "t")
	if err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if a != b {
		t.Error("re-attaching the same thread must return the existing env")
	}
}

func TestDetachUnbindsThread(t *testing.T) {
	vm := newTestVM(t, Options{})

	env, _ := vm.CurrentEnv()
	vm.Detach(env.Thread())

	if _, state := vm.CurrentEnv(); state != guestbridge.StateDetached {
		t.Fatalf("state after detach = %v, want detached", state)
	}

	// Unknown and repeated tokens are no-ops.
	vm.Detach(env.Thread())
	vm.Detach(1 << 60)

	// A detached thread can attach again.
	if _, err := vm.AttachCurrent(context.Background(), "again"); err != nil {
		t.Fatalf("re-attach after detach: %v", err)
	}
}

func TestDistinctGoroutinesGetDistinctEnvs(t *testing.T) {
	vm := newTestVM(t, Options{})

	const n = 8
	tokens := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := guestbridge.AcquireEnv(context.Background(), vm)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			tokens <- env.Thread()
			vm.Detach(env.Thread())
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[uint64]bool)
	for tok := range tokens {
		if seen[tok] {
			t.Fatalf("thread token %d handed to two goroutines", tok)
		}
		seen[tok] = true
	}
}

func TestCloseMovesToShutdown(t *testing.T) {
	vm := newTestVM(t, Options{})

	if err := vm.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, state := vm.CurrentEnv(); state != guestbridge.StateShutdown {
		t.Fatalf("state after close = %v, want shutdown", state)
	}
	if _, err := vm.AttachCurrent(context.Background(), "late"); err != ErrShutdown {
		t.Fatalf("attach after close = %v, want ErrShutdown", err)
	}

	// AcquireEnv treats shutdown as fatal, never as attachable.
	if _, err := guestbridge.AcquireEnv(context.Background(), vm); !errors.IsAttachFailure(err) {
		t.Fatalf("acquire after close = %v, want attach failure", err)
	}

	// Closing twice is a no-op.
	if err := vm.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFindClass(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()

	cls, err := env.FindClass(testClass)
	if err != nil {
		t.Fatalf("find class: %v", err)
	}
	if cls.Name() != testClass {
		t.Errorf("class name = %q", cls.Name())
	}

	_, err = env.FindClass("rapids:memory/no-such-class")
	if !errors.IsBindingFailure(err) {
		t.Fatalf("missing class error = %v, want binding failure", err)
	}
}

func TestMemberResolution(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()
	cls, err := env.FindClass(testClass)
	if err != nil {
		t.Fatalf("find class: %v", err)
	}

	if _, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}, wit.Bool{})); err != nil {
		t.Fatalf("resolve allocate: %v", err)
	}
	if _, err := cls.Int64Field("address"); err != nil {
		t.Fatalf("resolve address: %v", err)
	}
	if _, err := cls.Int64Field("length"); err != nil {
		t.Fatalf("resolve length: %v", err)
	}

	tests := []struct {
		name string
		do   func() error
	}{
		{"missing method", func() error {
			_, err := cls.StaticMethod("reallocate", guestbridge.FactorySignature(wit.S64{}))
			return err
		}},
		{"missing field", func() error {
			_, err := cls.Int64Field("capacity")
			return err
		}},
		{"wrong arity", func() error {
			_, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}))
			return err
		}},
		{"wrong param type", func() error {
			_, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}, wit.S64{}))
			return err
		}},
	}
	for _, tc := range tests {
		if err := tc.do(); !errors.IsBindingFailure(err) {
			t.Errorf("%s: got %v, want binding failure", tc.name, err)
		}
	}
}

func TestAllocateRoundTrip(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()
	cls, err := env.FindClass(testClass)
	if err != nil {
		t.Fatalf("find class: %v", err)
	}

	allocate, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}, wit.Bool{}))
	if err != nil {
		t.Fatalf("resolve allocate: %v", err)
	}
	address, err := cls.Int64Field("address")
	if err != nil {
		t.Fatalf("resolve address: %v", err)
	}
	length, err := cls.Int64Field("length")
	if err != nil {
		t.Fatalf("resolve length: %v", err)
	}

	obj := env.CallStaticObject(context.Background(), cls, allocate, int64(128), false)
	if env.ExceptionPending() {
		t.Fatalf("unexpected pending exception: %v", env.ExceptionClear())
	}
	if obj == nil {
		t.Fatal("allocate returned nil object without a pending exception")
	}

	if got := env.GetInt64Field(obj, length); got != 128 {
		t.Errorf("length = %d, want 128", got)
	}
	if got := env.GetInt64Field(obj, address); got == 0 {
		t.Error("address = 0, want a nonzero guest pointer")
	}
}

func TestGuestTrapBecomesPendingException(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()
	cls, _ := env.FindClass(testClass)
	allocate, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}, wit.Bool{}))
	if err != nil {
		t.Fatalf("resolve allocate: %v", err)
	}

	obj := env.CallStaticObject(context.Background(), cls, allocate, int64(-1), false)
	if obj != nil {
		t.Fatal("faulting call must return nil")
	}
	if !env.ExceptionPending() {
		t.Fatal("fault did not record a pending exception")
	}

	cause := env.ExceptionClear()
	if cause == nil {
		t.Fatal("clear returned nil for a pending exception")
	}
	if env.ExceptionPending() {
		t.Error("exception still pending after clear")
	}
	if env.ExceptionClear() != nil {
		t.Error("second clear must return nil")
	}

	// The environment stays usable after a cleared fault.
	if obj := env.CallStaticObject(context.Background(), cls, allocate, int64(8), true); obj == nil {
		t.Fatalf("call after cleared fault failed: %v", env.ExceptionClear())
	}
}

func TestBadArgumentRecordsPending(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()
	cls, _ := env.FindClass(testClass)
	allocate, err := cls.StaticMethod("allocate", guestbridge.FactorySignature(wit.S64{}, wit.Bool{}))
	if err != nil {
		t.Fatalf("resolve allocate: %v", err)
	}

	if obj := env.CallStaticObject(context.Background(), cls, allocate, "not a size", false); obj != nil {
		t.Fatal("mistyped call must return nil")
	}
	if !env.ExceptionPending() {
		t.Fatal("mistyped call did not record a pending exception")
	}
	env.ExceptionClear()
}

func TestPinUnpin(t *testing.T) {
	vm := newTestVM(t, Options{})
	env, _ := vm.CurrentEnv()
	cls, _ := env.FindClass(testClass)

	pinned, err := cls.Pin()
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if len(vm.pinned) != 1 {
		t.Fatalf("pin count = %d, want 1", len(vm.pinned))
	}

	pinned.Unpin()
	pinned.Unpin() // second release is a no-op
	if len(vm.pinned) != 0 {
		t.Fatalf("pin count after unpin = %d, want 0", len(vm.pinned))
	}
}

type eventSink struct {
	mu     sync.Mutex
	events []trace.Event
}

func (s *eventSink) OnBoundaryEvent(e trace.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) count(t trace.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func TestObserverSeesAttachDetach(t *testing.T) {
	sink := &eventSink{}
	vm := newTestVM(t, Options{Observer: sink})

	env, _ := vm.CurrentEnv()
	vm.Detach(env.Thread())

	if got := sink.count(trace.EventAttach); got != 1 {
		t.Errorf("attach events = %d, want 1", got)
	}
	if got := sink.count(trace.EventDetach); got != 1 {
		t.Errorf("detach events = %d, want 1", got)
	}
}

func TestGoid(t *testing.T) {
	if goid() == 0 {
		t.Fatal("goid returned 0")
	}
	if goid() != goid() {
		t.Fatal("goid is not stable within a goroutine")
	}

	other := make(chan uint64, 1)
	go func() { other <- goid() }()
	if <-other == goid() {
		t.Fatal("distinct goroutines share a goid")
	}
}
