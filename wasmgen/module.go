package wasmgen

import "bytes"

// ValType is a core WebAssembly value type
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

// Section ids used by the builder
const (
	sectionType     = 1
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
)

// Export kinds
const (
	exportFunc   = 0
	exportMemory = 2
	exportGlobal = 3
)

// FuncType describes a core function signature
type FuncType struct {
	Params  []ValType
	Results []ValType
}

type funcEntry struct {
	sig    FuncType
	locals []ValType
	body   []byte
}

type globalEntry struct {
	typ     ValType
	mutable bool
	init    int32
}

type exportEntry struct {
	name  string
	kind  byte
	index uint32
}

// Module accumulates sections and encodes them into a core wasm binary.
// The zero value is not usable; call NewModule.
type Module struct {
	funcs   []funcEntry
	globals []globalEntry
	exports []exportEntry
	memMin  uint32
	hasMem  bool
}

// NewModule creates an empty module builder
func NewModule() *Module {
	return &Module{}
}

// Memory declares the module's linear memory with min pages and no
// maximum. At most one memory is supported, per core wasm 1.0.
func (m *Module) Memory(minPages uint32) {
	m.memMin = minPages
	m.hasMem = true
}

// GlobalI32 declares an i32 global with the given initial value and
// returns its index.
func (m *Module) GlobalI32(init int32, mutable bool) uint32 {
	m.globals = append(m.globals, globalEntry{typ: I32, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// Func declares a function with the given signature, extra locals and raw
// body (without the trailing end opcode) and returns its index.
func (m *Module) Func(sig FuncType, locals []ValType, body []byte) uint32 {
	m.funcs = append(m.funcs, funcEntry{sig: sig, locals: locals, body: body})
	return uint32(len(m.funcs) - 1)
}

// ExportFunc exports the function at index under name.
func (m *Module) ExportFunc(name string, index uint32) {
	m.exports = append(m.exports, exportEntry{name: name, kind: exportFunc, index: index})
}

// ExportGlobal exports the global at index under name.
func (m *Module) ExportGlobal(name string, index uint32) {
	m.exports = append(m.exports, exportEntry{name: name, kind: exportGlobal, index: index})
}

// ExportMemory exports the module's memory under name.
func (m *Module) ExportMemory(name string) {
	m.exports = append(m.exports, exportEntry{name: name, kind: exportMemory, index: 0})
}

// Encode produces the binary module
func (m *Module) Encode() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d}) // \0asm
	out.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version 1

	// Type section: one entry per function, no deduplication. The
	// synthetic guests are small enough that sharing buys nothing.
	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeULEB(&sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteByte(0x60)
			writeValTypes(&sec, f.sig.Params)
			writeValTypes(&sec, f.sig.Results)
		}
		writeSection(&out, sectionType, sec.Bytes())

		sec.Reset()
		writeULEB(&sec, uint32(len(m.funcs)))
		for i := range m.funcs {
			writeULEB(&sec, uint32(i))
		}
		writeSection(&out, sectionFunction, sec.Bytes())
	}

	if m.hasMem {
		var sec bytes.Buffer
		writeULEB(&sec, 1)
		sec.WriteByte(0x00) // limits: min only
		writeULEB(&sec, m.memMin)
		writeSection(&out, sectionMemory, sec.Bytes())
	}

	if len(m.globals) > 0 {
		var sec bytes.Buffer
		writeULEB(&sec, uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.WriteByte(byte(g.typ))
			if g.mutable {
				sec.WriteByte(0x01)
			} else {
				sec.WriteByte(0x00)
			}
			sec.WriteByte(opI32Const)
			writeSLEB(&sec, g.init)
			sec.WriteByte(opEnd)
		}
		writeSection(&out, sectionGlobal, sec.Bytes())
	}

	if len(m.exports) > 0 {
		var sec bytes.Buffer
		writeULEB(&sec, uint32(len(m.exports)))
		for _, e := range m.exports {
			writeULEB(&sec, uint32(len(e.name)))
			sec.WriteString(e.name)
			sec.WriteByte(e.kind)
			writeULEB(&sec, e.index)
		}
		writeSection(&out, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		var sec bytes.Buffer
		writeULEB(&sec, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var entry bytes.Buffer
			writeULEB(&entry, uint32(len(f.locals)))
			for _, l := range f.locals {
				writeULEB(&entry, 1)
				entry.WriteByte(byte(l))
			}
			entry.Write(f.body)
			entry.WriteByte(opEnd)

			writeULEB(&sec, uint32(entry.Len()))
			sec.Write(entry.Bytes())
		}
		writeSection(&out, sectionCode, sec.Bytes())
	}

	return out.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeULEB(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	writeULEB(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}
