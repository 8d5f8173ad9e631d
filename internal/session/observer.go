package session

import (
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/transport"
)

// Observer receives every externally visible change of a session. All
// methods are called on the session's serialized context, so an
// implementation may read session getters synchronously from inside them.
// Implementations must not block.
type Observer interface {
	StateChanged(state link.State)
	Error(err error)
	MessageLogChanged(messages []chat.ChatMessage)
	DeviceRegistryChanged(peers []registry.DiscoveredPeer)
	RadioChanged(state transport.RadioState)
}

// BaseObserver ignores every notification. Embed it to implement only the
// methods you care about.
type BaseObserver struct{}

func (BaseObserver) StateChanged(link.State)                         {}
func (BaseObserver) Error(error)                                     {}
func (BaseObserver) MessageLogChanged([]chat.ChatMessage)            {}
func (BaseObserver) DeviceRegistryChanged([]registry.DiscoveredPeer) {}
func (BaseObserver) RadioChanged(transport.RadioState)               {}
