package registry

import (
	"sort"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/transport"
)

// Registry deduplicates discoveries by peer ID and publishes an
// RSSI-sorted list on a fixed cadence.
//
// Discovery events can arrive many times per second per device. Record only
// marks the registry dirty; Flush, called from the batch tick, rebuilds the
// sorted list and reports a change only when it differs from the last one
// published.
type Registry struct {
	serviceUUID string
	peers       *hashmap.Map[string, DiscoveredPeer]
	published   []DiscoveredPeer
	dirty       bool
	logger      *logrus.Logger
}

// New returns an empty registry matching advertisers against serviceUUID.
func New(serviceUUID string, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		serviceUUID: serviceUUID,
		peers:       hashmap.New[string, DiscoveredPeer](),
		logger:      logger,
	}
}

// Record upserts the peer described by d. Every field is last-write-wins.
func (r *Registry) Record(d transport.Discovery) {
	if d.ID == "" {
		return
	}
	peer := NewPeer(d, r.serviceUUID)
	if _, existing := r.peers.Get(d.ID); !existing {
		r.logger.WithFields(logrus.Fields{
			"device":  peer.Name,
			"address": peer.ID,
			"rssi":    peer.RSSI,
		}).Debug("Discovered new device")
	}
	r.peers.Set(d.ID, peer)
	r.dirty = true
}

// Lookup returns the current entry for id.
func (r *Registry) Lookup(id string) (DiscoveredPeer, bool) {
	return r.peers.Get(id)
}

// Len returns the number of known peers.
func (r *Registry) Len() int { return r.peers.Len() }

// Dirty reports whether Record was called since the last Flush.
func (r *Registry) Dirty() bool { return r.dirty }

// Flush rebuilds the published list if the registry is dirty. It returns
// the published list and whether it changed.
func (r *Registry) Flush() ([]DiscoveredPeer, bool) {
	if !r.dirty {
		return r.Published(), false
	}
	r.dirty = false

	sorted := r.sorted()
	if sameSequence(sorted, r.published) {
		return r.Published(), false
	}
	r.published = sorted
	return r.Published(), true
}

// Reset forgets every peer. It reports whether a non-empty list had been published.
func (r *Registry) Reset() bool {
	r.peers = hashmap.New[string, DiscoveredPeer]()
	r.dirty = false
	had := len(r.published) > 0
	r.published = nil
	return had
}

// Published returns a copy of the last published list.
func (r *Registry) Published() []DiscoveredPeer {
	out := make([]DiscoveredPeer, len(r.published))
	copy(out, r.published)
	return out
}

func (r *Registry) sorted() []DiscoveredPeer {
	out := make([]DiscoveredPeer, 0, r.peers.Len())
	r.peers.Range(func(_ string, p DiscoveredPeer) bool {
		out = append(out, p)
		return true
	})
	// Ties are broken by ID; map iteration order must not reshuffle equal signals.
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI == out[j].RSSI {
			return out[i].ID < out[j].ID
		}
		return out[i].RSSI > out[j].RSSI
	})
	return out
}

func sameSequence(a, b []DiscoveredPeer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}
