package moduleapi

import "github.com/aergo-project/aergo-core/internal/memsys"

// ICore is the facade a module instance is handed at creation time
// (create_module's core_facade argument). It fixes the module's own
// identity so send_* calls need only a local channel index plus, for
// request/response, an explicit target endpoint.
type ICore interface {
	SendMessage(channel uint32, msg MessageHeader)
	SendRequest(channel uint32, target Endpoint, msg MessageHeader) uint64
	SendResponse(channel uint32, target Endpoint, msg MessageHeader)

	CreateDynamicAllocator(name string) memsys.Allocator
	CreateBufferAllocator(name string, slotBytes uint64, slotCount uint32) (memsys.Allocator, error)
	DeleteAllocator(name string)
}
