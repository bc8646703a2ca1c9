// Package wasmgen encodes minimal core WebAssembly modules in memory.
//
// The boundary's tests and the probe CLI need guest modules with an exact
// export shape, and shipping prebuilt binaries makes that shape invisible
// to the reader. wasmgen builds the module programmatically instead:
// LEB128 primitives, the handful of sections a synthetic guest needs
// (type, function, memory, global, export, code), and a tiny instruction
// writer.
//
// SyntheticHostBuffer produces the reference guest implementing the
// host-buffer class shape consumed by the bindings package.
package wasmgen
