package wasmgen

import "bytes"

// Core instruction opcodes used by the builder
const (
	opUnreachable  = 0x00
	opIf           = 0x04
	opEnd          = 0x0b
	opLocalGet     = 0x20
	opGlobalGet    = 0x23
	opGlobalSet    = 0x24
	opI32Const     = 0x41
	opI64Const     = 0x42
	opI64LtS       = 0x53
	opI32Add       = 0x6a
	opI32WrapI64   = 0xa7
	opI64ExtendI32 = 0xad // unsigned extend
	opI64Store     = 0x37

	blockTypeVoid = 0x40
)

// Code builds a function body instruction by instruction.
type Code struct {
	buf bytes.Buffer
}

func (c *Code) LocalGet(index uint32) *Code {
	c.buf.WriteByte(opLocalGet)
	writeULEB(&c.buf, index)
	return c
}

func (c *Code) GlobalGet(index uint32) *Code {
	c.buf.WriteByte(opGlobalGet)
	writeULEB(&c.buf, index)
	return c
}

func (c *Code) GlobalSet(index uint32) *Code {
	c.buf.WriteByte(opGlobalSet)
	writeULEB(&c.buf, index)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.buf.WriteByte(opI32Const)
	writeSLEB(&c.buf, v)
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.buf.WriteByte(opI64Const)
	writeSLEB64(&c.buf, v)
	return c
}

func (c *Code) I64LtS() *Code {
	c.buf.WriteByte(opI64LtS)
	return c
}

func (c *Code) I32Add() *Code {
	c.buf.WriteByte(opI32Add)
	return c
}

func (c *Code) I32WrapI64() *Code {
	c.buf.WriteByte(opI32WrapI64)
	return c
}

func (c *Code) I64ExtendI32U() *Code {
	c.buf.WriteByte(opI64ExtendI32)
	return c
}

// I64Store writes an i64 store with the given alignment exponent and
// constant offset.
func (c *Code) I64Store(align, offset uint32) *Code {
	c.buf.WriteByte(opI64Store)
	writeULEB(&c.buf, align)
	writeULEB(&c.buf, offset)
	return c
}

// If opens a void-typed conditional block; close it with End.
func (c *Code) If() *Code {
	c.buf.WriteByte(opIf)
	c.buf.WriteByte(blockTypeVoid)
	return c
}

func (c *Code) End() *Code {
	c.buf.WriteByte(opEnd)
	return c
}

func (c *Code) Unreachable() *Code {
	c.buf.WriteByte(opUnreachable)
	return c
}

// Bytes returns the encoded body without the function's trailing end
// opcode; Module.Func appends that.
func (c *Code) Bytes() []byte {
	return c.buf.Bytes()
}
