package bindings

import (
	"sync/atomic"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	guestbridge "github.com/wippyai/guest-bridge"
)

// Guest names the cache binds at load time.
const (
	// HostBufferClass is the fully-qualified name of the guest class
	// providing host-accessible buffers.
	HostBufferClass = "rapids:memory/host-buffer"

	allocateMethod = "allocate"
	addressField   = "address"
	lengthField    = "length"
)

// Cache holds the pinned host-buffer class and its resolved members.
// Populate and Release frame its lifetime; between them every accessor
// is lock-free.
type Cache struct {
	log   *zap.Logger
	ready atomic.Bool

	class    guestbridge.PinnedClass
	allocate guestbridge.Method
	address  guestbridge.Field
	length   guestbridge.Field
}

// NewCache creates an unpopulated cache.
func NewCache(log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{log: log}
}

// Populate resolves the host-buffer class and members through env.
// The class is pinned last, after every member resolved, so a failure
// anywhere leaves the cache empty and nothing retained guest-side.
func (c *Cache) Populate(env guestbridge.Env) error {
	cls, err := env.FindClass(HostBufferClass)
	if err != nil {
		return err
	}

	allocate, err := cls.StaticMethod(allocateMethod,
		guestbridge.FactorySignature(wit.S64{}, wit.Bool{}))
	if err != nil {
		return err
	}
	address, err := cls.Int64Field(addressField)
	if err != nil {
		return err
	}
	length, err := cls.Int64Field(lengthField)
	if err != nil {
		return err
	}

	pinned, err := cls.Pin()
	if err != nil {
		return err
	}

	c.class = pinned
	c.allocate = allocate
	c.address = address
	c.length = length
	c.ready.Store(true)

	c.log.Debug("binding cache populated", zap.String("class", HostBufferClass))
	return nil
}

// Release unpins the class and empties the cache. Releasing an
// unpopulated cache is a no-op.
func (c *Cache) Release() {
	if !c.ready.CompareAndSwap(true, false) {
		return
	}
	c.class.Unpin()
	c.log.Debug("binding cache released", zap.String("class", HostBufferClass))
}

// Ready reports whether Populate has completed.
func (c *Cache) Ready() bool {
	return c.ready.Load()
}

func (c *Cache) check() {
	if !c.ready.Load() {
		panic("bindings: cache accessed before populate")
	}
}

// BufferClass returns the pinned host-buffer class.
func (c *Cache) BufferClass() guestbridge.PinnedClass {
	c.check()
	return c.class
}

// AllocateMethod returns the resolved allocate factory.
func (c *Cache) AllocateMethod() guestbridge.Method {
	c.check()
	return c.allocate
}

// AddressField returns the resolved address field.
func (c *Cache) AddressField() guestbridge.Field {
	c.check()
	return c.address
}

// LengthField returns the resolved length field.
func (c *Cache) LengthField() guestbridge.Field {
	c.check()
	return c.length
}
