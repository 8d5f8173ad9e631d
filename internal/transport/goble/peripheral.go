package goble

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/groutine"
	"github.com/srg/blepeer/internal/transport"
)

// DefaultWriteTimeout bounds how long an inbound write waits for the
// session to acknowledge it.
const DefaultWriteTimeout = 2 * time.Second

// ATT status codes not exported by name in every go-ble version.
const (
	attAttrNotFound    = ble.ATTError(0x0a)
	attInvalidValueLen = ble.ATTError(0x0d)
	attUnlikely        = ble.ATTError(0x0e)
)

// peripheralDevice is the part of ble.Device the peripheral role uses.
type peripheralDevice interface {
	AddService(svc *ble.Service) error
	RemoveAllServices() error
	AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error
	Stop() error
}

// notifier is the part of ble.Notifier used to push to a subscriber.
type notifier interface {
	Write(b []byte) (int, error)
}

// Peripheral implements transport.Peripheral over a go-ble device.
type Peripheral struct {
	radio
	dev          peripheralDevice
	ops          *executor.Loop
	writeTimeout time.Duration

	mu          sync.Mutex
	subscribers map[string]notifier
	value       []byte
	advCancel   context.CancelFunc
}

var _ transport.Peripheral = (*Peripheral)(nil)

// NewPeripheral opens the platform device in the peripheral role. A radio
// that is off or unauthorized is not an error: the transport is returned
// with the matching RadioState and rejects operations.
func NewPeripheral(ctx context.Context, logger *logrus.Logger) (*Peripheral, error) {
	dev, err := DeviceFactory(PeripheralRole)
	state, err := initialState(err)
	if err != nil {
		return nil, NormalizeError(err)
	}
	var pd peripheralDevice
	if dev != nil {
		pd = dev
	}
	return newPeripheral(ctx, pd, state, logger), nil
}

func newPeripheral(ctx context.Context, dev peripheralDevice, state transport.RadioState, logger *logrus.Logger) *Peripheral {
	if logger == nil {
		logger = logrus.New()
	}
	if dev == nil && state.Ready() {
		state = transport.RadioUnknown
	}
	p := &Peripheral{
		radio:        radio{logger: logger, state: state},
		dev:          dev,
		ops:          executor.NewLoop("ble-peripheral-ops", logger),
		writeTimeout: DefaultWriteTimeout,
		subscribers:  make(map[string]notifier),
	}
	p.ops.Start(ctx)
	return p
}

// AddService implements transport.Peripheral.
func (p *Peripheral) AddService(def transport.ServiceSpec) {
	p.ops.Post(func() {
		err := p.addService(def)
		if err != nil {
			p.observe(err)
			err = NormalizeError(err)
		}
		p.emit(transport.Event{
			Kind:       transport.EventServiceAdded,
			Service:    def.UUID,
			Generation: def.Generation,
			Err:        err,
		})
	})
}

func (p *Peripheral) addService(def transport.ServiceSpec) error {
	if p.dev == nil {
		return ErrNoDevice
	}
	svcUUID, err := ble.Parse(def.UUID)
	if err != nil {
		return err
	}
	charUUID, err := ble.Parse(def.Characteristic)
	if err != nil {
		return err
	}

	svc := ble.NewService(svcUUID)
	c := svc.NewCharacteristic(charUUID)
	if def.Properties.Read {
		c.HandleRead(ble.ReadHandlerFunc(func(_ ble.Request, rsp ble.ResponseWriter) {
			if _, err := rsp.Write(p.Value()); err != nil {
				p.logger.WithError(err).Debug("Read response truncated")
			}
		}))
	}
	if def.Properties.Write {
		c.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
			rsp.SetStatus(p.serveWrite(peerOf(req), def.Characteristic, req.Data()))
		}))
	}
	if def.Properties.Notify {
		c.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
			p.serveSubscription(n.Context(), peerOf(req), def.Characteristic, n)
		}))
	}

	p.logger.WithFields(logrus.Fields{
		"service":        def.UUID,
		"characteristic": def.Characteristic,
	}).Debug("Adding GATT service")
	return p.dev.AddService(svc)
}

// serveWrite hands an inbound write to the session and waits for its verdict.
func (p *Peripheral) serveWrite(peer, characteristic string, data []byte) ble.ATTError {
	payload := append([]byte(nil), data...)
	verdict := make(chan transport.AttResult, 1)

	delivered := p.emit(transport.Event{
		Kind:           transport.EventWriteReceived,
		Peer:           peer,
		Characteristic: characteristic,
		Data:           payload,
		Respond: func(r transport.AttResult) {
			select {
			case verdict <- r:
			default:
			}
		},
	})
	if !delivered {
		return attUnlikely
	}

	select {
	case r := <-verdict:
		if r == transport.AttSuccess {
			p.mu.Lock()
			p.value = payload
			p.mu.Unlock()
		}
		return attStatus(r)
	case <-time.After(p.writeTimeout):
		p.logger.WithField("peer", peer).Warn("Write not acknowledged in time")
		return attUnlikely
	}
}

// serveSubscription tracks one subscriber until its context ends.
func (p *Peripheral) serveSubscription(ctx context.Context, peer, characteristic string, n notifier) {
	p.mu.Lock()
	p.subscribers[peer] = n
	p.mu.Unlock()

	p.emit(transport.Event{Kind: transport.EventSubscribed, Peer: peer, Characteristic: characteristic})
	<-ctx.Done()

	p.mu.Lock()
	if p.subscribers[peer] == n {
		delete(p.subscribers, peer)
	}
	p.mu.Unlock()
	p.emit(transport.Event{Kind: transport.EventUnsubscribed, Peer: peer, Characteristic: characteristic})
}

// Value returns the characteristic value served to reads.
func (p *Peripheral) Value() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.value...)
}

// RemoveAllServices implements transport.Peripheral.
func (p *Peripheral) RemoveAllServices() {
	p.ops.Post(func() {
		p.mu.Lock()
		p.value = nil
		p.mu.Unlock()
		if p.dev == nil {
			return
		}
		if err := p.dev.RemoveAllServices(); err != nil {
			p.observe(err)
			p.logger.WithError(err).Warn("Failed to remove services")
		}
	})
}

// StartAdvertising implements transport.Peripheral.
func (p *Peripheral) StartAdvertising(name string, services []string) {
	uuids, err := parseUUIDs(services)
	if err != nil || p.dev == nil {
		if err == nil {
			err = ErrNoDevice
		}
		p.emit(transport.Event{Kind: transport.EventAdvertisingFailed, Err: err})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if p.advCancel != nil {
		p.advCancel()
	}
	p.advCancel = cancel
	p.mu.Unlock()

	// Queued behind pending service registrations.
	p.ops.Post(func() {
		groutine.Go(ctx, "ble-advertise", func(ctx context.Context) {
			log := groutine.Logger(ctx, p.logger).WithField("name", name)
			log.Debug("Advertising")

			err := p.dev.AdvertiseNameAndServices(ctx, name, uuids...)
			if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.observe(err)
			log.WithError(err).Warn("Advertising failed")
			p.emit(transport.Event{Kind: transport.EventAdvertisingFailed, Err: NormalizeError(err)})
		})
	})
}

// StopAdvertising implements transport.Peripheral.
func (p *Peripheral) StopAdvertising() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.advCancel != nil {
		p.advCancel()
		p.advCancel = nil
	}
}

// Notify implements transport.Peripheral.
func (p *Peripheral) Notify(peer, _ string, data []byte) error {
	p.mu.Lock()
	n, ok := p.subscribers[peer]
	p.mu.Unlock()
	if !ok {
		return ErrNoSubscriber
	}
	_, err := n.Write(data)
	return err
}

// Close stops advertising and releases the device.
func (p *Peripheral) Close() error {
	p.StopAdvertising()
	// Queued service removals must reach the device before it stops.
	p.ops.Flush()
	if p.dev == nil {
		return nil
	}
	return p.dev.Stop()
}

func attStatus(r transport.AttResult) ble.ATTError {
	switch r {
	case transport.AttSuccess:
		return ble.ErrSuccess
	case transport.AttInvalidValueLength:
		return attInvalidValueLen
	case transport.AttNotFound:
		return attAttrNotFound
	default:
		return attUnlikely
	}
}

func peerOf(req ble.Request) string {
	if req == nil || req.Conn() == nil {
		return ""
	}
	return req.Conn().RemoteAddr().String()
}
