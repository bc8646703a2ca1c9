package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
)

// threadEnv implements the root Env contract over one private guest
// instance. It is confined to the thread that attached it; nothing in
// it is synchronized.
type threadEnv struct {
	b       *binding
	mem     api.Memory
	funcs   map[string]api.Function
	pending error
}

func (e *threadEnv) Thread() uint64 {
	return e.b.tid
}

// FindClass resolves a class by checking the compiled module's export
// namespace for at least one member under the class prefix.
func (e *threadEnv) FindClass(name string) (guestbridge.Class, error) {
	prefix := name + "#"
	for export := range e.b.vm.compiled.ExportedFunctions() {
		if strings.HasPrefix(export, prefix) {
			return &classDef{env: e, name: name}, nil
		}
	}
	return nil, errors.ClassMissing(name)
}

// function resolves an export against this environment's instance,
// caching the handle for repeated calls.
func (e *threadEnv) function(export string) api.Function {
	if fn, ok := e.funcs[export]; ok {
		return fn
	}
	fn := e.b.inst.ExportedFunction(export)
	if fn != nil {
		e.funcs[export] = fn
	}
	return fn
}

func (e *threadEnv) CallStaticObject(ctx context.Context, cls guestbridge.Class, m guestbridge.Method, args ...any) guestbridge.Object {
	md, ok := m.(*methodDef)
	if !ok {
		e.pending = fmt.Errorf("foreign method descriptor %T", m)
		return nil
	}
	if len(args) != len(md.sig.Params) {
		e.pending = fmt.Errorf("%s: expected %d arguments, got %d",
			md.export, len(md.sig.Params), len(args))
		return nil
	}

	stack := make([]uint64, 0, len(args))
	for i, a := range args {
		v, err := lowerArg(md.sig.Params[i], a)
		if err != nil {
			e.pending = fmt.Errorf("%s: argument %d: %w", md.export, i, err)
			return nil
		}
		stack = append(stack, v)
	}

	fn := e.function(md.export)
	if fn == nil {
		e.pending = fmt.Errorf("%s: export not present in this instance", md.export)
		return nil
	}

	results, err := fn.Call(ctx, stack...)
	if err != nil {
		// A guest trap becomes this environment's pending exception.
		e.pending = err
		return nil
	}
	if !md.sig.ReturnsOwn || len(results) == 0 {
		return nil
	}
	return objectRef{mem: e.mem, addr: uint32(results[0])}
}

// GetInt64Field reads an i64 field through its resolved byte offset.
// Like any raw field accessor it has no failure path; a foreign object
// or an out-of-range read yields zero.
func (e *threadEnv) GetInt64Field(obj guestbridge.Object, f guestbridge.Field) int64 {
	ref, rok := obj.(objectRef)
	fd, fok := f.(*fieldDef)
	if !rok || !fok {
		return 0
	}
	v, ok := ref.mem.ReadUint64Le(ref.addr + fd.offset)
	if !ok {
		return 0
	}
	return int64(v)
}

func (e *threadEnv) ExceptionPending() bool {
	return e.pending != nil
}

func (e *threadEnv) ExceptionClear() error {
	err := e.pending
	e.pending = nil
	return err
}

// objectRef is a borrowed reference into the owning instance's linear
// memory. It stays valid only while that instance is attached.
type objectRef struct {
	mem  api.Memory
	addr uint32
}
