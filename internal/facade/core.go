// Package facade implements ICore, the thin per-module view of the bus
// handed to each module instance at creation time. It fixes the module's
// own identity, timestamps and ids outgoing messages, and forwards
// everything else straight to the bus - holding no state of its own
// beyond that back-reference, and never holding the bus lock across a
// call into module code (the bus's own routing entry points already
// enforce that by taking and releasing their lock internally).
package facade

import (
	"sync/atomic"
	"time"

	"github.com/aergo-project/aergo-core/internal/bus"
	"github.com/aergo-project/aergo-core/internal/memsys"
	"github.com/aergo-project/aergo-core/internal/moduleapi"
)

// Core is the concrete ICore a running module calls into.
type Core struct {
	b        *bus.Bus
	moduleID bus.RunningModuleID

	nextRequestID uint64
}

// New builds the ICore view for moduleID. Matches bus.FacadeFactory so it
// can be wired in by main without the bus package importing this one.
func New(b *bus.Bus, moduleID bus.RunningModuleID) moduleapi.ICore {
	return &Core{b: b, moduleID: moduleID}
}

func (c *Core) self(channel uint32) moduleapi.Endpoint {
	return moduleapi.Endpoint{Module: uint64(c.moduleID), Channel: channel}
}

func (c *Core) SendMessage(channel uint32, msg moduleapi.MessageHeader) {
	msg.Timestamp = time.Now().UnixNano()
	c.b.SendMessage(c.self(channel), msg)
}

func (c *Core) SendRequest(channel uint32, target moduleapi.Endpoint, msg moduleapi.MessageHeader) uint64 {
	id := atomic.AddUint64(&c.nextRequestID, 1)
	msg.ID = id
	msg.Timestamp = time.Now().UnixNano()
	c.b.SendRequest(c.self(channel), target, msg)
	return id
}

func (c *Core) SendResponse(channel uint32, target moduleapi.Endpoint, msg moduleapi.MessageHeader) {
	msg.Timestamp = time.Now().UnixNano()
	c.b.SendResponse(c.self(channel), target, msg)
}

func (c *Core) CreateDynamicAllocator(name string) memsys.Allocator {
	return c.b.CreateDynamicAllocator(name)
}

func (c *Core) CreateBufferAllocator(name string, slotBytes uint64, slotCount uint32) (memsys.Allocator, error) {
	return c.b.CreateBufferAllocator(name, slotBytes, slotCount)
}

func (c *Core) DeleteAllocator(name string) {
	c.b.DeleteAllocator(name)
}
