package wasmgen

// Layout constants of the synthetic guest: a single instance record at a
// fixed address, buffer storage bump-allocated behind it.
const (
	recordAddr    = 16
	addressOffset = 0
	lengthOffset  = 8
	heapBase      = 64
)

// SyntheticHostBuffer builds a core module implementing the host-buffer
// class shape under the given fully-qualified class name:
//
//	<class>#allocate : (i64 size, i32 prefer-pinned) -> i32 record ptr
//	<class>#address  : immutable i32 global, byte offset of the address field
//	<class>#length   : immutable i32 global, byte offset of the length field
//	memory           : exported linear memory
//
// The factory traps on a negative size, which is how a managed-side
// allocation failure surfaces to the boundary. prefer-pinned is accepted
// and ignored; a synthetic guest has no pinned pool.
func SyntheticHostBuffer(class string) []byte {
	m := NewModule()
	m.Memory(1)

	next := m.GlobalI32(heapBase, true)
	addrOff := m.GlobalI32(addressOffset, false)
	lenOff := m.GlobalI32(lengthOffset, false)

	var c Code
	// trap on negative size
	c.LocalGet(0).I64Const(0).I64LtS().If().Unreachable().End()
	// record.address = next
	c.I32Const(recordAddr).GlobalGet(next).I64ExtendI32U().I64Store(3, addressOffset)
	// record.length = size
	c.I32Const(recordAddr).LocalGet(0).I64Store(3, lengthOffset)
	// next += size
	c.GlobalGet(next).LocalGet(0).I32WrapI64().I32Add().GlobalSet(next)
	// return the record pointer
	c.I32Const(recordAddr)

	fn := m.Func(FuncType{
		Params:  []ValType{I64, I32},
		Results: []ValType{I32},
	}, nil, c.Bytes())

	m.ExportFunc(class+"#allocate", fn)
	m.ExportGlobal(class+"#address", addrOff)
	m.ExportGlobal(class+"#length", lenOff)
	m.ExportMemory("memory")
	return m.Encode()
}
