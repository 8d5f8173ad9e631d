package session

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/transport"
)

// PeripheralSession advertises the chat service and serves a single
// subscribed central.
type PeripheralSession struct {
	core
	transport transport.Peripheral

	serviceRegistered bool
	serviceGen        uint64 // last registration requested
	registering       bool   // serviceGen has not completed yet
	advertising       bool
	subscriber        string
	lastValue         []byte

	autoStarted bool
	startTimer  executor.Timer
}

// NewPeripheralSession wires a session to t. Call Start to attach it.
func NewPeripheralSession(t transport.Peripheral, sched executor.Scheduler, obs Observer, opts *Options, logger *logrus.Logger) *PeripheralSession {
	return &PeripheralSession{
		core:      newCore(link.Peripheral, sched, obs, opts, logger),
		transport: t,
	}
}

// Start attaches the session to its transport and evaluates the current
// radio state, which may schedule the first automatic advertising start.
func (s *PeripheralSession) Start() {
	s.transport.SetHandler(func(ev transport.Event) {
		s.sched.Post(func() { s.handleEvent(ev) })
	})
	s.sched.Post(func() { s.onRadioState(s.transport.RadioState()) })
}

// Close stops advertising and detaches the transport handler.
func (s *PeripheralSession) Close() {
	s.sched.Post(func() {
		s.stopAdvertising()
		s.transport.SetHandler(nil)
	})
}

// StartAdvertising registers the chat service and begins advertising.
func (s *PeripheralSession) StartAdvertising() {
	s.sched.Post(func() {
		s.clearError()
		s.startAdvertising()
	})
}

// StopAdvertising stops advertising, drops any subscriber and returns to Idle.
func (s *PeripheralSession) StopAdvertising() { s.sched.Post(s.stopAdvertising) }

// Disconnect drops the current subscriber and starts advertising again.
func (s *PeripheralSession) Disconnect() { s.sched.Post(s.disconnect) }

// SendMessage notifies the subscribed central with text.
func (s *PeripheralSession) SendMessage(text string) {
	s.sched.Post(func() { s.sendMessage(text) })
}

// Subscriber returns the identifier of the connected central, or "".
func (s *PeripheralSession) Subscriber() string { return s.subscriber }

// Advertising reports whether the transport is currently advertising.
func (s *PeripheralSession) Advertising() bool { return s.advertising }

// Value returns the characteristic value served to reads: the last
// message written by the central.
func (s *PeripheralSession) Value() []byte {
	return append([]byte(nil), s.lastValue...)
}

func (s *PeripheralSession) startAdvertising() {
	radio := s.transport.RadioState()
	if !radio.Ready() {
		s.fail(newError(RadioUnavailable, radio.Describe(), nil))
		return
	}
	if s.machine.Is(link.Linking, link.Connected, link.Disconnecting) {
		s.fail(newError(InvalidState, "disconnect first before starting advertising", nil))
		return
	}
	if s.machine.Is(link.Preparing, link.Active) {
		s.logger.Debug("Advertising already starting")
		return
	}

	s.fire(link.Start)
	s.serviceGen++
	s.registering = true
	s.logger.WithFields(logrus.Fields{
		"service":    s.opts.ServiceUUID,
		"generation": s.serviceGen,
	}).Info("Registering chat service")
	s.transport.AddService(transport.ServiceSpec{
		UUID:           s.opts.ServiceUUID,
		Characteristic: s.opts.CharacteristicUUID,
		Properties:     transport.Properties{Read: true, Write: true, Notify: true},
		Generation:     s.serviceGen,
	})
}

func (s *PeripheralSession) stopAdvertising() {
	s.cancelStartTimer()
	if s.advertising {
		s.transport.StopAdvertising()
		s.advertising = false
	}
	s.releaseService()
	s.subscriber = ""
	s.clearHistory()
	if !s.machine.Is(link.Idle) {
		s.fire(link.Stop)
		s.logger.Info("Advertising stopped")
	}
}

func (s *PeripheralSession) disconnect() {
	if !s.machine.Is(link.Connected) {
		s.fail(newError(InvalidState, "no subscribed central to disconnect", nil))
		return
	}
	s.logger.WithField("peer", s.subscriber).Info("Disconnecting subscriber")
	s.teardown(s.transport.RadioState().Ready())
}

// teardown walks Connected -> Disconnecting -> Idle and optionally restarts
// advertising. The service is deregistered so that the transport drops the
// subscriber and a restart registers it afresh.
func (s *PeripheralSession) teardown(restart bool) {
	if s.machine.Is(link.Linking, link.Connected) {
		s.fire(link.PeerLost)
	}
	s.releaseService()
	s.subscriber = ""
	s.clearHistory()
	if s.machine.Is(link.Disconnecting) {
		s.fire(link.Cleared)
	}
	if restart {
		s.startAdvertising()
	}
}

// releaseService deregisters the service, including one still being
// registered: transport calls apply in order, so the removal lands after it.
func (s *PeripheralSession) releaseService() {
	if s.serviceRegistered || s.registering {
		s.transport.RemoveAllServices()
		s.serviceRegistered = false
		s.registering = false
	}
}

func (s *PeripheralSession) sendMessage(text string) {
	if err := chat.CheckLength(text, s.opts.MaxMessageLength); err != nil {
		s.fail(newError(MessageTooLong, fmt.Sprintf("max %d bytes", s.opts.MaxMessageLength), err))
		return
	}
	if !s.serviceRegistered || s.subscriber == "" {
		s.logger.Debug("Dropping message: no subscriber")
		return
	}
	payload, err := chat.Encode(text, s.opts.MaxMessageLength)
	if err != nil {
		s.logger.WithError(err).Debug("Dropping message")
		return
	}

	s.appendMessage(text, chat.Sent)
	if err := s.transport.Notify(s.subscriber, s.opts.CharacteristicUUID, payload); err != nil {
		s.fail(newError(SendFailed, "Failed to send message", err))
	}
}

func (s *PeripheralSession) handleEvent(ev transport.Event) {
	s.logger.WithFields(logrus.Fields{
		"event": ev.Kind,
		"peer":  ev.Peer,
	}).Trace("Transport event")

	switch ev.Kind {
	case transport.EventRadioStateChanged:
		s.onRadioState(ev.Radio)
	case transport.EventServiceAdded:
		s.onServiceAdded(ev.Generation, ev.Err)
	case transport.EventAdvertisingFailed:
		s.onAdvertisingFailed(ev.Err)
	case transport.EventSubscribed:
		s.onSubscribed(ev.Peer, ev.Characteristic)
	case transport.EventUnsubscribed:
		s.onUnsubscribed(ev.Peer)
	case transport.EventWriteReceived:
		s.onWriteReceived(ev)
	default:
		s.logger.WithField("event", ev.Kind).Debug("Ignoring event")
	}
}

func (s *PeripheralSession) onRadioState(state transport.RadioState) {
	s.setRadio(state)

	if state.Ready() {
		if s.opts.DisableAutoAdvertise || !s.machine.Is(link.Idle) || s.startTimer != nil {
			return
		}
		if s.autoStarted {
			s.startAdvertising()
			return
		}
		s.autoStarted = true
		s.startTimer = s.sched.After(s.opts.StartupDelay, func() {
			s.startTimer = nil
			if s.machine.Is(link.Idle) {
				s.startAdvertising()
			}
		})
		return
	}

	s.cancelStartTimer()
	if s.machine.Is(link.Idle) {
		return
	}
	s.stopAdvertising()
	s.fail(newError(RadioUnavailable, state.Describe(), nil))
}

func (s *PeripheralSession) cancelStartTimer() {
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
}

func (s *PeripheralSession) onServiceAdded(gen uint64, err error) {
	if !s.registering || gen != s.serviceGen || !s.machine.Can(link.Registered) {
		// Superseded or stopped; releaseService already queued its removal.
		s.logger.WithFields(logrus.Fields{
			"generation": gen,
			"current":    s.serviceGen,
		}).Debug("Ignoring stale service registration")
		return
	}
	s.registering = false
	if err != nil {
		s.fire(link.SetupFailed)
		s.fail(newError(SetupFailed, "error adding service", err))
		return
	}

	s.serviceRegistered = true
	s.fire(link.Registered)

	services := []string{s.opts.ServiceUUID}
	name := chat.FitAdvertisedName(s.opts.AdvertisedName, services, s.opts.MaxAdvertisementSize)
	if name != s.opts.AdvertisedName {
		s.logger.WithFields(logrus.Fields{
			"name":      s.opts.AdvertisedName,
			"truncated": name,
		}).Warn("Advertised name truncated to fit the advertisement")
	}
	s.transport.StartAdvertising(name, services)
	s.advertising = true
	s.logger.WithField("name", name).Info("Advertising started")
}

func (s *PeripheralSession) onAdvertisingFailed(err error) {
	if !s.advertising {
		return
	}
	s.advertising = false
	s.releaseService()
	if !s.machine.Is(link.Idle) {
		s.fire(link.Stop)
	}
	s.fail(newError(SetupFailed, "error advertising", err))
}

func (s *PeripheralSession) onSubscribed(peer, characteristic string) {
	if characteristic != "" && !sameUUID(characteristic, s.opts.CharacteristicUUID) {
		return
	}
	if s.subscriber != "" {
		if peer != s.subscriber {
			s.logger.WithField("peer", peer).Warn("Ignoring additional subscriber")
		}
		return
	}
	if !s.machine.Is(link.Active) {
		s.logger.WithFields(logrus.Fields{
			"peer":  peer,
			"state": s.machine.State(),
		}).Debug("Ignoring subscription outside advertising")
		return
	}

	s.subscriber = peer
	s.fire(link.PeerFound)
	s.fire(link.Established)
	if s.advertising {
		s.transport.StopAdvertising()
		s.advertising = false
	}
	s.clearError()
	s.logger.WithField("peer", peer).Info("Central subscribed")
}

func (s *PeripheralSession) onUnsubscribed(peer string) {
	if s.subscriber == "" || peer != s.subscriber {
		return
	}
	s.logger.WithField("peer", peer).Info("Central unsubscribed")
	s.teardown(!s.opts.DisableAutoRestart && s.transport.RadioState().Ready())
}

func (s *PeripheralSession) onWriteReceived(ev transport.Event) {
	respond := ev.Respond
	if respond == nil {
		respond = func(transport.AttResult) {}
	}

	if !sameUUID(ev.Characteristic, s.opts.CharacteristicUUID) {
		respond(transport.AttNotFound)
		return
	}
	text, err := chat.Decode(ev.Data)
	if err != nil {
		s.logger.WithField("peer", ev.Peer).WithError(err).Debug("Rejecting write")
		respond(transport.AttInvalidValueLength)
		return
	}

	s.lastValue = append([]byte(nil), ev.Data...)
	s.appendMessage(text, chat.Received)
	respond(transport.AttSuccess)
}
