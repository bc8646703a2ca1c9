// Package bindings caches the guest class and member handles the bridge
// resolves at module load.
//
// Resolution is all-or-nothing: the class is pinned only after every
// member resolves, so a partial failure retains no guest references.
// Once populated, the cached handles are immutable and safe to read
// from any thread; accessing them before population is a programming
// error and panics.
package bindings
