// Package hostbuf is the allocation trampoline: it routes host-side
// buffer requests through the guest's factory and translates guest
// faults into structured errors.
package hostbuf

import (
	"context"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/bindings"
	"github.com/wippyai/guest-bridge/errors"
)

// allocFailedMsg is the fixed message allocation faults carry; the
// guest's own fault payload travels as the cause, never decoded here.
const allocFailedMsg = "allocateHostBuffer threw an exception"

// Allocate asks the guest for a host-accessible buffer of size bytes.
// preferPinned hints that the buffer should come from the pinned pool
// when the guest has one. The returned object is confined to env's
// thread.
//
// A guest fault is consumed from the environment and returned as an
// allocation failure, leaving no exception pending.
func Allocate(ctx context.Context, env guestbridge.Env, c *bindings.Cache, size int64, preferPinned bool) (guestbridge.Object, error) {
	obj := env.CallStaticObject(ctx, c.BufferClass(), c.AllocateMethod(), size, preferPinned)
	if env.ExceptionPending() {
		cause := env.ExceptionClear()
		return nil, errors.GuestException(allocFailedMsg, cause)
	}
	return obj, nil
}

// Address reads the buffer's raw memory address.
func Address(env guestbridge.Env, c *bindings.Cache, buf guestbridge.Object) int64 {
	return env.GetInt64Field(buf, c.AddressField())
}

// Length reads the buffer's length in bytes.
func Length(env guestbridge.Env, c *bindings.Cache, buf guestbridge.Object) int64 {
	return env.GetInt64Field(buf, c.LengthField())
}
