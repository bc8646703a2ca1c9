// Package engine hosts a guest module on wazero and exposes it through
// the boundary contracts of the root package.
//
// # Architecture
//
//	VM                 compiled guest + thread registry
//	├── threadEnv      per-thread guest instance (one per attached thread)
//	│   ├── funcCache  resolved export functions, instance-bound
//	│   └── pending    fault recorded by the last guest call
//	├── classDef       borrowed class reference over the export namespace
//	│   └── pinnedClass  process-lifetime promotion, tracked by the VM
//	└── binding        one-shot detach guard shared with the cleanup hook
//
// Each attached thread owns a private instantiation of the compiled
// guest, so environments never share mutable guest state. The VM keeps
// only a weak reference to each environment; when a thread abandons its
// environment without detaching, a runtime cleanup closes the instance
// and removes the registry slot. Explicit Detach and the cleanup race
// safely: the binding detaches exactly once.
//
// Class and member resolution is validated against the compiled module's
// export shapes, so a signature mismatch surfaces at bind time rather
// than as a fault mid-call.
package engine
