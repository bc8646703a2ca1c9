// Package guestbridge manages the boundary between native Go code and a
// managed guest runtime: a garbage-collected, fault-signaling execution
// environment hosted in-process (wazero-backed in the engine package).
//
// The library covers the three places the two runtime models have to be
// reconciled:
//
//   - binding a calling thread to the guest runtime on demand, with
//     automatic teardown when the thread's execution context ends
//   - resolving and pinning, once per process load, the guest class and
//     member handles native code repeatedly invokes
//   - a thin trampoline that calls the guest's buffer factory and reads
//     the result's address/length fields, translating guest faults into
//     Go errors
//
// # Architecture Overview
//
//	guestbridge/         Root package with the VM/Env/Class contracts and AcquireEnv
//	├── engine/          wazero-backed VM implementation
//	├── bindings/        Load-time cache of pinned class and member handles
//	├── hostbuf/         Host buffer allocation trampoline and field reads
//	├── lifecycle/       Load/unload state machine over binding sets
//	├── trace/           Optional boundary event recording (msgpack frames)
//	├── wasmgen/         Minimal core wasm encoder for synthetic guests
//	└── errors/          Structured error types for the boundary taxonomy
//
// # Quick Start
//
//	vm, err := engine.New(ctx, guestWasm, engine.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vm.Close(ctx)
//
//	cache := bindings.NewCache(nil)
//	mod := lifecycle.New(lifecycle.Config{}, cache)
//	if _, err := mod.OnLoad(vm); err != nil {
//	    log.Fatal(err)
//	}
//
//	env, err := guestbridge.AcquireEnv(ctx, vm)
//	buf, err := hostbuf.Allocate(ctx, env, cache, 4096, false)
//	addr := hostbuf.Address(env, cache, buf)
//
// # Thread Safety
//
// VM implementations are safe for concurrent use. An Env is confined to
// the thread (goroutine) that acquired it: it must never be stored past
// that thread's lifetime or handed to another thread. Pinned class and
// member handles are write-once at load and safe to share afterwards.
package guestbridge
