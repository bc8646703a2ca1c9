package guestbridge

import (
	"context"

	"go.bytecodealliance.org/wit"
)

// AttachState reports how the calling thread currently relates to the
// guest runtime. CurrentEnv follows a strict trichotomy: StateAttached and
// StateDetached are the only recoverable states; anything else is fatal to
// the acquiring call.
type AttachState uint32

const (
	// StateDetached means the thread is not yet known to the runtime.
	StateDetached AttachState = iota
	// StateAttached means the thread already owns an environment.
	StateAttached
	// StateShutdown means the runtime is tearing down and can no longer
	// bind threads.
	StateShutdown
)

func (s AttachState) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttached:
		return "attached"
	case StateShutdown:
		return "shutdown"
	}
	return "invalid"
}

// VM is the process-wide handle to a managed guest runtime. It outlives
// every environment, class and member handle derived from it.
type VM interface {
	// CurrentEnv reports the environment bound to the calling thread.
	// The env is non-nil exactly when the state is StateAttached.
	CurrentEnv() (Env, AttachState)

	// AttachCurrent registers the calling thread with the runtime as a
	// daemon-class thread (runtime shutdown never waits on it) and
	// returns its new environment. Implementations install a guard that
	// detaches the binding exactly once, either when the thread's
	// execution context ends or on an explicit Detach.
	AttachCurrent(ctx context.Context, name string) (Env, error)

	// Detach unbinds the thread identified by token. Detaching a token
	// that is unknown or already detached is a no-op.
	Detach(token uint64)
}

// Env is a thread-confined interface into the guest runtime. It must not
// be stored beyond the lifetime of the thread that obtained it, nor
// passed to another thread; acquire a fresh one instead.
type Env interface {
	// Thread returns the token of the owning thread.
	Thread() uint64

	// FindClass resolves a guest class by fully-qualified name. The
	// returned reference is borrowed and call-scoped: pin it before the
	// resolving call path returns if it is to be kept.
	FindClass(name string) (Class, error)

	// CallStaticObject invokes a factory-style member with cls as the
	// call target and returns the resulting object reference. A guest
	// fault is recorded as this environment's pending exception and a
	// nil object is returned; callers probe ExceptionPending after every
	// call rather than inspecting the result.
	CallStaticObject(ctx context.Context, cls Class, m Method, args ...any) Object

	// GetInt64Field reads a 64-bit integer instance field through a
	// resolved field handle. It has no failure path of its own; passing
	// a malformed object is undefined behavior, consistent with any
	// field accessor.
	GetInt64Field(obj Object, f Field) int64

	// ExceptionPending reports whether the last guest call recorded a
	// fault for this environment.
	ExceptionPending() bool

	// ExceptionClear consumes and returns the pending fault, nil if none
	// is pending. The fault payload is opaque to native code.
	ExceptionClear() error
}

// Class is a reference to a guest class. References returned by FindClass
// are call-scoped; Pin promotes one to process lifetime.
type Class interface {
	Name() string

	// StaticMethod resolves a factory-style member against the class,
	// validating sig against the guest's exported shape.
	StaticMethod(name string, sig Signature) (Method, error)

	// Int64Field resolves a 64-bit integer instance field by name.
	Int64Field(name string) (Field, error)

	// Pin promotes this reference so it survives guest garbage
	// collection until Unpin. Member resolution stays bound to the
	// environment that resolved the class, so resolve members before
	// that environment goes away.
	Pin() (PinnedClass, error)
}

// PinnedClass is a class reference promoted to process lifetime. It is
// owned by whoever pinned it and released exactly once via Unpin.
type PinnedClass interface {
	Class

	// Unpin releases the process-lifetime reference. Calling it again is
	// a no-op.
	Unpin()
}

// Method is an opaque, pre-resolved member descriptor. It is immutable
// after resolution and, unlike object references, needs no liveness
// tracking: it is safe to reuse across threads and calls.
type Method interface {
	Name() string
}

// Field mirrors Method for instance fields.
type Field interface {
	Name() string
}

// Object is a reference to a guest object instance. It is valid only on
// the thread whose environment produced it, and only while that
// environment stays attached. Ownership of the underlying storage is
// guest-side; native code must not assume exclusive or permanent access.
type Object any

// Signature describes the shape of a guest member in WIT types.
type Signature struct {
	Params []wit.Type
	// ReturnsOwn marks a factory returning an instance of the class the
	// member is resolved against.
	ReturnsOwn bool
}

// FactorySignature builds the signature of a static factory member
// returning an instance of its own class.
func FactorySignature(params ...wit.Type) Signature {
	return Signature{Params: params, ReturnsOwn: true}
}
