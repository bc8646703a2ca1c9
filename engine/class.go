package engine

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/errors"
)

// classDef is a borrowed class reference over the compiled module's
// export namespace, scoped to the environment that resolved it.
type classDef struct {
	env  *threadEnv
	name string
}

func (c *classDef) Name() string {
	return c.name
}

// StaticMethod resolves a member export and validates its guest shape
// against sig before handing out a descriptor.
func (c *classDef) StaticMethod(name string, sig guestbridge.Signature) (guestbridge.Method, error) {
	export := c.name + "#" + name
	def, ok := c.env.b.vm.compiled.ExportedFunctions()[export]
	if !ok {
		return nil, errors.MemberMissing(c.name, name)
	}

	params, results, err := flattenSignature(sig)
	if err != nil {
		return nil, errors.SignatureMismatch(c.name, name, err.Error())
	}
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		return nil, errors.SignatureMismatch(c.name, name, fmt.Sprintf(
			"guest exports (%s) -> (%s), expected (%s) -> (%s)",
			typeNames(def.ParamTypes()), typeNames(def.ResultTypes()),
			typeNames(params), typeNames(results)))
	}

	return &methodDef{export: export, name: name, sig: sig}, nil
}

// Int64Field resolves a field's byte offset from the guest's exported
// offset global. Offsets are immutable and identical across instances,
// so the descriptor outlives the resolving environment.
func (c *classDef) Int64Field(name string) (guestbridge.Field, error) {
	g := c.env.b.inst.ExportedGlobal(c.name + "#" + name)
	if g == nil {
		return nil, errors.MemberMissing(c.name, name)
	}
	return &fieldDef{name: name, offset: uint32(g.Get())}, nil
}

// Pin promotes the reference to process lifetime. The VM tracks pins so
// leaks are visible at shutdown.
func (c *classDef) Pin() (guestbridge.PinnedClass, error) {
	p := &pinnedClass{classDef: *c, vm: c.env.b.vm}
	p.vm.pin(p)
	return p, nil
}

type pinnedClass struct {
	classDef
	vm       *VM
	unpinned atomic.Bool
}

// Unpin releases the process-lifetime reference exactly once.
func (p *pinnedClass) Unpin() {
	if !p.unpinned.CompareAndSwap(false, true) {
		return
	}
	p.vm.unpin(p)
}

// methodDef is an instance-independent member descriptor: the export
// name plus the validated signature. Each environment resolves it into
// its own function cache at call time.
type methodDef struct {
	export string
	name   string
	sig    guestbridge.Signature
}

func (m *methodDef) Name() string {
	return m.name
}

type fieldDef struct {
	name   string
	offset uint32
}

func (f *fieldDef) Name() string {
	return f.name
}

func typeNames(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}
