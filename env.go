package guestbridge

import (
	"context"

	"github.com/wippyai/guest-bridge/errors"
)

// threadName is the name attached threads are registered under, visible
// in guest-side diagnostics.
const threadName = "guest-bridge thread"

// AcquireEnv returns the guest environment for the calling thread,
// attaching the thread to vm if it is not yet known.
//
// A thread the runtime already knows gets its existing environment back
// with no allocation and no side effect, so calling AcquireEnv on every
// entry into the boundary is cheap. An unknown thread is attached as a
// daemon-class thread and the attach installs a one-shot guard that
// detaches the binding when the thread's execution context ends; at most
// one guard ever exists per thread.
//
// Any attach state other than attached or detached, and any attach
// failure, is fatal to the call. AcquireEnv never retries: retry policy
// belongs to the caller.
func AcquireEnv(ctx context.Context, vm VM) (Env, error) {
	env, state := vm.CurrentEnv()
	switch state {
	case StateAttached:
		return env, nil
	case StateDetached:
		// fall through to attach
	default:
		return nil, errors.BadAttachState(state.String())
	}

	env, err := vm.AttachCurrent(ctx, threadName)
	if err != nil {
		return nil, errors.AttachFailed(err)
	}
	return env, nil
}
