package goble

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/groutine"
	"github.com/srg/blepeer/internal/transport"
)

// centralDevice is the part of ble.Device the central role uses.
type centralDevice interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
	Stop() error
}

// remote is one connected peripheral and the handles discovered on it.
type remote struct {
	client          ble.Client
	services        map[string]*ble.Service
	characteristics map[string]*ble.Characteristic
	cancelled       bool
}

// Central implements transport.Central over a go-ble device.
type Central struct {
	radio
	dev centralDevice
	ops *executor.Loop

	mu         sync.Mutex
	scanCancel context.CancelFunc
	dials      map[string]context.CancelFunc
	remotes    map[string]*remote
}

var _ transport.Central = (*Central)(nil)

// NewCentral opens the platform device in the central role. A radio that
// is off or unauthorized is reported through RadioState, not as an error.
func NewCentral(ctx context.Context, logger *logrus.Logger) (*Central, error) {
	dev, err := DeviceFactory(CentralRole)
	state, err := initialState(err)
	if err != nil {
		return nil, NormalizeError(err)
	}
	var cd centralDevice
	if dev != nil {
		cd = dev
	}
	return newCentral(ctx, cd, state, logger), nil
}

func newCentral(ctx context.Context, dev centralDevice, state transport.RadioState, logger *logrus.Logger) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	if dev == nil && state.Ready() {
		state = transport.RadioUnknown
	}
	c := &Central{
		radio:   radio{logger: logger, state: state},
		dev:     dev,
		ops:     executor.NewLoop("ble-central-ops", logger),
		dials:   make(map[string]context.CancelFunc),
		remotes: make(map[string]*remote),
	}
	c.ops.Start(ctx)
	return c
}

// StartScan implements transport.Central.
func (c *Central) StartScan(allowDuplicates bool) {
	if c.dev == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.scanCancel != nil {
		c.scanCancel()
	}
	c.scanCancel = cancel
	c.mu.Unlock()

	groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
		log := groutine.Logger(ctx, c.logger)
		log.Debug("Scan started")

		err := c.dev.Scan(ctx, allowDuplicates, func(a ble.Advertisement) {
			d := discoveryFrom(a)
			c.emit(transport.Event{Kind: transport.EventDiscovered, Peer: d.ID, Discovery: &d})
		})
		if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
			c.observe(err)
			log.WithError(NormalizeError(err)).Warn("Scan failed")
			return
		}
		log.Debug("Scan stopped")
	})
}

// StopScan implements transport.Central.
func (c *Central) StopScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanCancel != nil {
		c.scanCancel()
		c.scanCancel = nil
	}
}

// Connect implements transport.Central.
func (c *Central) Connect(peer string) {
	if c.dev == nil {
		c.emit(transport.Event{Kind: transport.EventConnectFailed, Peer: peer, Err: ErrNoDevice})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if prev, ok := c.dials[peer]; ok {
		prev()
	}
	c.dials[peer] = cancel
	c.mu.Unlock()

	groutine.Go(ctx, "ble-dial", func(ctx context.Context) {
		log := groutine.Logger(ctx, c.logger).WithField("peer", peer)
		client, err := c.dev.Dial(ctx, ble.NewAddr(peer))

		c.mu.Lock()
		delete(c.dials, peer)
		c.mu.Unlock()

		if ctx.Err() != nil {
			// Cancelled by CancelConnection.
			if err == nil && client != nil {
				_ = client.CancelConnection()
			}
			return
		}
		if err != nil {
			c.observe(err)
			log.WithError(err).Info("Connect failed")
			c.emit(transport.Event{Kind: transport.EventConnectFailed, Peer: peer, Err: NormalizeError(err)})
			return
		}

		r := &remote{
			client:          client,
			services:        make(map[string]*ble.Service),
			characteristics: make(map[string]*ble.Characteristic),
		}
		c.mu.Lock()
		c.remotes[peer] = r
		c.mu.Unlock()

		log.Info("Connected")
		c.emit(transport.Event{Kind: transport.EventConnected, Peer: peer})
		c.watch(peer, r)
	})
}

// watch reports the link drop of r. It returns once the client disconnects.
func (c *Central) watch(peer string, r *remote) {
	dc, ok := r.client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		c.logger.WithField("peer", peer).Debug("Client cannot report disconnects")
		return
	}
	<-dc.Disconnected()

	c.mu.Lock()
	if c.remotes[peer] == r {
		delete(c.remotes, peer)
	}
	cancelled := r.cancelled
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"peer":      peer,
		"requested": cancelled,
	}).Info("Disconnected")
	c.emit(transport.Event{Kind: transport.EventDisconnected, Peer: peer})
}

// CancelConnection implements transport.Central.
func (c *Central) CancelConnection(peer string) {
	c.mu.Lock()
	if cancel, ok := c.dials[peer]; ok {
		cancel()
		delete(c.dials, peer)
	}
	r, ok := c.remotes[peer]
	if ok {
		r.cancelled = true
	}
	c.mu.Unlock()

	if ok {
		c.ops.Post(func() {
			if err := r.client.CancelConnection(); err != nil {
				c.logger.WithField("peer", peer).WithError(err).Debug("Cancel connection failed")
			}
		})
	}
}

func (c *Central) lookup(peer string) (*remote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.remotes[peer]
	if !ok {
		return nil, ErrUnknownPeer
	}
	return r, nil
}

// DiscoverServices implements transport.Central.
func (c *Central) DiscoverServices(peer string, services []string) {
	c.ops.Post(func() {
		found, err := c.discoverServices(peer, services)
		c.emit(transport.Event{Kind: transport.EventServicesDiscovered, Peer: peer, Services: found, Err: err})
	})
}

func (c *Central) discoverServices(peer string, services []string) ([]string, error) {
	r, err := c.lookup(peer)
	if err != nil {
		return nil, err
	}
	filter, err := parseUUIDs(services)
	if err != nil {
		return nil, err
	}
	svcs, err := r.client.DiscoverServices(filter)
	if err != nil {
		return nil, NormalizeError(err)
	}

	found := make([]string, 0, len(svcs))
	c.mu.Lock()
	for _, s := range svcs {
		for _, want := range services {
			if sameUUID(s.UUID, want) {
				r.services[want] = s
			}
		}
		found = append(found, s.UUID.String())
	}
	c.mu.Unlock()
	return found, nil
}

// DiscoverCharacteristics implements transport.Central.
func (c *Central) DiscoverCharacteristics(peer, service string, characteristics []string) {
	c.ops.Post(func() {
		found, err := c.discoverCharacteristics(peer, service, characteristics)
		c.emit(transport.Event{
			Kind:            transport.EventCharacteristicsDiscovered,
			Peer:            peer,
			Service:         service,
			Characteristics: found,
			Err:             err,
		})
	})
}

func (c *Central) discoverCharacteristics(peer, service string, characteristics []string) ([]string, error) {
	r, err := c.lookup(peer)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	svc, ok := r.services[service]
	c.mu.Unlock()
	if !ok {
		return nil, ErrUnknownHandle
	}
	filter, err := parseUUIDs(characteristics)
	if err != nil {
		return nil, err
	}
	chars, err := r.client.DiscoverCharacteristics(filter, svc)
	if err != nil {
		return nil, NormalizeError(err)
	}

	found := make([]string, 0, len(chars))
	c.mu.Lock()
	for _, ch := range chars {
		for _, want := range characteristics {
			if sameUUID(ch.UUID, want) {
				r.characteristics[want] = ch
			}
		}
		found = append(found, ch.UUID.String())
	}
	c.mu.Unlock()
	return found, nil
}

func (c *Central) characteristic(peer, characteristic string) (*remote, *ble.Characteristic, error) {
	r, err := c.lookup(peer)
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	ch, ok := r.characteristics[characteristic]
	c.mu.Unlock()
	if !ok {
		return nil, nil, ErrUnknownHandle
	}
	return r, ch, nil
}

// Subscribe implements transport.Central.
func (c *Central) Subscribe(peer, _, characteristic string) {
	c.ops.Post(func() {
		err := c.subscribe(peer, characteristic)
		c.emit(transport.Event{
			Kind:           transport.EventNotifySubscribed,
			Peer:           peer,
			Characteristic: characteristic,
			Err:            err,
		})
	})
}

func (c *Central) subscribe(peer, characteristic string) error {
	r, ch, err := c.characteristic(peer, characteristic)
	if err != nil {
		return err
	}
	// The CCCD must be known before subscribing on HCI backends.
	if _, err := r.client.DiscoverDescriptors(nil, ch); err != nil {
		c.logger.WithField("peer", peer).WithError(err).Debug("Descriptor discovery failed")
	}
	err = r.client.Subscribe(ch, false, func(data []byte) {
		c.emit(transport.Event{
			Kind:           transport.EventNotifyReceived,
			Peer:           peer,
			Characteristic: characteristic,
			Data:           append([]byte(nil), data...),
		})
	})
	return NormalizeError(err)
}

// Write implements transport.Central.
func (c *Central) Write(peer, _, characteristic string, data []byte) {
	payload := append([]byte(nil), data...)
	c.ops.Post(func() {
		err := c.write(peer, characteristic, payload)
		c.emit(transport.Event{Kind: transport.EventWriteAck, Peer: peer, Characteristic: characteristic, Err: err})
	})
}

func (c *Central) write(peer, characteristic string, data []byte) error {
	r, ch, err := c.characteristic(peer, characteristic)
	if err != nil {
		return err
	}
	return NormalizeError(r.client.WriteCharacteristic(ch, data, false))
}

// Close stops scanning, drops every link and releases the device.
func (c *Central) Close() error {
	c.StopScan()
	c.mu.Lock()
	peers := make([]string, 0, len(c.remotes)+len(c.dials))
	for p := range c.remotes {
		peers = append(peers, p)
	}
	for p := range c.dials {
		peers = append(peers, p)
	}
	c.mu.Unlock()
	for _, p := range peers {
		c.CancelConnection(p)
	}

	// Run the queued cancels even if the owning context is already done.
	c.ops.Flush()
	if c.dev == nil {
		return nil
	}
	return c.dev.Stop()
}
