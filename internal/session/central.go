package session

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/transport"
)

// CentralSession scans for peripherals, connects to one of them and
// exchanges messages over its chat characteristic.
type CentralSession struct {
	core
	transport transport.Central
	registry  *registry.Registry

	scanning   bool
	batchTimer executor.Timer

	peer           string
	service        string
	characteristic string
	subscribed     bool
	status         ConnectionStatus
}

// NewCentralSession wires a session to t. Call Start to attach it.
func NewCentralSession(t transport.Central, sched executor.Scheduler, obs Observer, opts *Options, logger *logrus.Logger) *CentralSession {
	c := newCore(link.Central, sched, obs, opts, logger)
	return &CentralSession{
		core:      c,
		transport: t,
		registry:  registry.New(c.opts.ServiceUUID, c.logger),
	}
}

// Start attaches the session to its transport.
func (s *CentralSession) Start() {
	s.transport.SetHandler(func(ev transport.Event) {
		s.sched.Post(func() { s.handleEvent(ev) })
	})
	s.sched.Post(func() { s.onRadioState(s.transport.RadioState()) })
}

// Close drops any link, stops scanning and detaches the transport handler.
func (s *CentralSession) Close() {
	s.sched.Post(func() {
		s.opts.DisableAutoRestart = true
		s.disconnect()
		s.stopScanning()
		s.transport.SetHandler(nil)
	})
}

// StartScanning clears the device registry and starts a scan.
func (s *CentralSession) StartScanning() {
	s.sched.Post(func() {
		s.clearError()
		s.startScanning()
	})
}

// StopScanning stops the scan and publishes the final device list.
func (s *CentralSession) StopScanning() { s.sched.Post(s.stopScanning) }

// Connect dials a previously discovered peer.
func (s *CentralSession) Connect(peerID string) {
	s.sched.Post(func() { s.connect(peerID) })
}

// Disconnect cancels a pending or established link.
func (s *CentralSession) Disconnect() { s.sched.Post(s.disconnect) }

// SendMessage writes text to the connected peripheral.
func (s *CentralSession) SendMessage(text string) {
	s.sched.Post(func() { s.sendMessage(text) })
}

// Devices returns the last published device list.
func (s *CentralSession) Devices() []registry.DiscoveredPeer { return s.registry.Published() }

// Scanning reports whether a scan is in progress.
func (s *CentralSession) Scanning() bool { return s.scanning }

// Peer returns the identifier of the linked peripheral, or "".
func (s *CentralSession) Peer() string { return s.peer }

// Ready reports whether discovery completed and notifications are enabled.
func (s *CentralSession) Ready() bool { return s.subscribed }

// ConnectionStatus returns the coarse status shown next to the peer.
func (s *CentralSession) ConnectionStatus() ConnectionStatus { return s.status }

func (s *CentralSession) startScanning() {
	radio := s.transport.RadioState()
	if !radio.Ready() {
		s.fail(newError(RadioUnavailable, radio.Describe(), nil))
		return
	}
	if s.scanning {
		return
	}
	if s.machine.Is(link.Linking, link.Connected, link.Disconnecting) {
		s.fail(newError(InvalidState, "disconnect first before scanning", nil))
		return
	}

	if s.registry.Reset() {
		s.observer.DeviceRegistryChanged([]registry.DiscoveredPeer{})
	}
	s.scanning = true
	s.fire(link.Start)
	s.batchTimer = s.sched.Every(s.opts.BatchInterval, s.flushRegistry)
	s.transport.StartScan(true)
	s.logger.WithField("service", s.opts.ServiceUUID).Info("Scanning started")
}

func (s *CentralSession) stopScanning() {
	if !s.scanning {
		return
	}
	s.haltScan()
	if s.machine.Is(link.Active) {
		s.fire(link.Stop)
	}
	s.logger.WithField("devices", s.registry.Len()).Info("Scanning stopped")
}

// haltScan stops the scan without touching the link state.
func (s *CentralSession) haltScan() {
	s.scanning = false
	s.transport.StopScan()
	if s.batchTimer != nil {
		s.batchTimer.Stop()
		s.batchTimer = nil
	}
	s.flushRegistry()
}

func (s *CentralSession) flushRegistry() {
	if peers, changed := s.registry.Flush(); changed {
		s.observer.DeviceRegistryChanged(peers)
	}
}

func (s *CentralSession) connect(peerID string) {
	if !s.machine.Can(link.PeerFound) {
		s.logger.WithField("peer", peerID).Debug("Already linked, ignoring connect")
		return
	}
	if _, ok := s.registry.Lookup(peerID); !ok {
		s.fail(newError(InvalidState, fmt.Sprintf("unknown peer %q", peerID), nil))
		return
	}
	if radio := s.transport.RadioState(); !radio.Ready() {
		s.fail(newError(RadioUnavailable, radio.Describe(), nil))
		return
	}

	s.clearError()
	s.peer = peerID
	s.setStatus(ConnectionStatus{Kind: StatusConnecting})
	s.fire(link.PeerFound)
	s.logger.WithField("peer", peerID).Info("Connecting")
	s.transport.Connect(peerID)
}

func (s *CentralSession) disconnect() {
	linked := s.machine.Is(link.Linking, link.Connected)
	if s.peer != "" {
		s.logger.WithField("peer", s.peer).Info("Disconnecting")
		s.transport.CancelConnection(s.peer)
	}
	s.teardown()
	if linked {
		s.resume()
	}
}

// teardown walks Linking/Connected -> Disconnecting -> Idle and releases
// every peer-scoped handle.
func (s *CentralSession) teardown() {
	if s.machine.Is(link.Linking, link.Connected) {
		s.fire(link.PeerLost)
	}
	s.peer = ""
	s.service = ""
	s.characteristic = ""
	s.subscribed = false
	s.clearHistory()
	if s.machine.Is(link.Disconnecting) {
		s.fire(link.Cleared)
	}
	s.setStatus(ConnectionStatus{Kind: StatusDisconnected})
}

// resume returns an Idle session to Active: either the scan never stopped,
// or a new one is started when auto-restart is allowed.
func (s *CentralSession) resume() {
	if !s.machine.Is(link.Idle) {
		return
	}
	if s.scanning {
		s.fire(link.Start)
		return
	}
	if !s.opts.DisableAutoRestart && s.transport.RadioState().Ready() {
		s.startScanning()
	}
}

// abortLink drops a link whose connect or discovery chain failed.
func (s *CentralSession) abortLink(reason string, cause error) {
	if s.peer != "" {
		s.transport.CancelConnection(s.peer)
	}
	s.teardown()
	s.linkFailed(reason, cause)
	s.resume()
}

func (s *CentralSession) linkFailed(reason string, cause error) {
	status := reason
	if cause != nil {
		status = cause.Error()
	}
	s.setStatus(ConnectionStatus{Kind: StatusError, Reason: status})
	s.fail(newError(LinkFailed, reason, cause))
}

func (s *CentralSession) setStatus(st ConnectionStatus) {
	if !s.status.Equal(st) {
		s.logger.WithField("status", st).Debug("Connection status changed")
	}
	s.status = st
}

func (s *CentralSession) sendMessage(text string) {
	if !s.machine.Is(link.Connected) || s.peer == "" {
		s.fail(newError(NotReady, "device not ready", nil))
		return
	}
	if err := chat.CheckLength(text, s.opts.MaxMessageLength); err != nil {
		s.fail(newError(MessageTooLong, fmt.Sprintf("max %d bytes", s.opts.MaxMessageLength), err))
		return
	}
	if s.service == "" {
		s.fail(newError(ServiceNotFound, "service not discovered", nil))
		return
	}
	if s.characteristic == "" {
		s.fail(newError(CharacteristicNotFound, "characteristic not discovered", nil))
		return
	}
	if !s.subscribed {
		s.fail(newError(NotReady, "notifications not subscribed yet", nil))
		return
	}
	payload, err := chat.Encode(text, s.opts.MaxMessageLength)
	if err != nil {
		s.fail(newError(EncodingFailed, "", err))
		return
	}

	s.appendMessage(text, chat.Sent)
	s.transport.Write(s.peer, s.service, s.characteristic, payload)
}

func (s *CentralSession) handleEvent(ev transport.Event) {
	s.logger.WithFields(logrus.Fields{
		"event": ev.Kind,
		"peer":  ev.Peer,
	}).Trace("Transport event")

	switch ev.Kind {
	case transport.EventRadioStateChanged:
		s.onRadioState(ev.Radio)
	case transport.EventDiscovered:
		s.onDiscovered(ev.Discovery)
	case transport.EventConnected:
		s.onConnected(ev.Peer)
	case transport.EventConnectFailed:
		s.onConnectFailed(ev.Peer, ev.Err)
	case transport.EventDisconnected:
		s.onDisconnected(ev.Peer, ev.Err)
	case transport.EventServicesDiscovered:
		s.onServicesDiscovered(ev.Peer, ev.Services, ev.Err)
	case transport.EventCharacteristicsDiscovered:
		s.onCharacteristicsDiscovered(ev.Peer, ev.Characteristics, ev.Err)
	case transport.EventNotifySubscribed:
		s.onNotifySubscribed(ev.Peer, ev.Err)
	case transport.EventNotifyReceived:
		s.onNotifyReceived(ev.Peer, ev.Data)
	case transport.EventWriteAck:
		s.onWriteAck(ev.Err)
	case transport.EventServicesInvalidated:
		s.onServicesInvalidated(ev.Peer, ev.Services)
	default:
		s.logger.WithField("event", ev.Kind).Debug("Ignoring event")
	}
}

func (s *CentralSession) onRadioState(state transport.RadioState) {
	s.setRadio(state)
	if state.Ready() {
		s.clearError()
		return
	}

	active := s.scanning || !s.machine.Is(link.Idle)
	if s.peer != "" {
		s.transport.CancelConnection(s.peer)
	}
	s.teardown()
	if s.scanning {
		s.haltScan()
	}
	if !s.machine.Is(link.Idle) {
		s.fire(link.Stop)
	}
	if active {
		s.fail(newError(RadioUnavailable, state.Describe(), nil))
	}
}

func (s *CentralSession) onDiscovered(d *transport.Discovery) {
	if !s.scanning || d == nil {
		return
	}
	s.registry.Record(*d)
}

func (s *CentralSession) onConnected(peer string) {
	if peer != s.peer || !s.machine.Is(link.Linking) {
		s.logger.WithField("peer", peer).Debug("Ignoring stale connect")
		return
	}

	s.fire(link.Established)
	s.setStatus(ConnectionStatus{Kind: StatusConnected})
	s.clearError()
	if s.scanning {
		s.haltScan()
	}
	s.logger.WithField("peer", peer).Info("Connected, discovering services")
	s.transport.DiscoverServices(peer, []string{s.opts.ServiceUUID})
}

func (s *CentralSession) onConnectFailed(peer string, err error) {
	if peer != s.peer || !s.machine.Can(link.Failed) {
		return
	}
	reason := "Connection failed"
	if err != nil {
		reason = err.Error()
	}
	s.connectFailed(reason)
}

// connectFailed ends a connect attempt that never reached Connected.
func (s *CentralSession) connectFailed(reason string) {
	s.fire(link.Failed)
	s.peer = ""
	s.service = ""
	s.characteristic = ""
	s.subscribed = false
	s.setStatus(ConnectionStatus{Kind: StatusError, Reason: reason})
	s.fail(newError(LinkFailed, reason, nil))
	s.resume()
}

func (s *CentralSession) onDisconnected(peer string, err error) {
	if peer == "" || peer != s.peer {
		return
	}
	s.logger.WithField("peer", peer).WithError(err).Info("Peer disconnected")
	if s.machine.Can(link.Failed) {
		reason := "disconnected before the link was established"
		if err != nil {
			reason = err.Error()
		}
		s.connectFailed(reason)
		return
	}
	s.teardown()
	if err != nil {
		s.linkFailed("disconnected", err)
	}
	s.resume()
}

func (s *CentralSession) onServicesDiscovered(peer string, services []string, err error) {
	if peer != s.peer || !s.machine.Is(link.Connected) {
		return
	}
	if err != nil {
		s.abortLink("service discovery failed", err)
		return
	}
	if !containsUUID(services, s.opts.ServiceUUID) {
		s.abortLink("chat service not found", nil)
		return
	}

	s.service = s.opts.ServiceUUID
	s.transport.DiscoverCharacteristics(peer, s.service, []string{s.opts.CharacteristicUUID})
}

func (s *CentralSession) onCharacteristicsDiscovered(peer string, chars []string, err error) {
	if peer != s.peer || s.service == "" {
		return
	}
	if err != nil {
		s.abortLink("characteristic discovery failed", err)
		return
	}
	if !containsUUID(chars, s.opts.CharacteristicUUID) {
		s.abortLink("chat characteristic not found", nil)
		return
	}

	s.characteristic = s.opts.CharacteristicUUID
	s.transport.Subscribe(peer, s.service, s.characteristic)
}

func (s *CentralSession) onNotifySubscribed(peer string, err error) {
	if peer != s.peer || s.characteristic == "" {
		return
	}
	if err != nil {
		s.abortLink("subscribe failed", err)
		return
	}
	s.subscribed = true
	s.logger.WithField("peer", peer).Info("Ready to chat")
}

func (s *CentralSession) onNotifyReceived(peer string, data []byte) {
	if peer != s.peer || !s.machine.Is(link.Connected) {
		return
	}
	text, err := chat.Decode(data)
	if err != nil {
		s.logger.WithField("peer", peer).WithError(err).Debug("Dropping notification")
		return
	}
	s.appendMessage(text, chat.Received)
}

func (s *CentralSession) onWriteAck(err error) {
	if err != nil {
		s.fail(newError(SendFailed, "Failed to send message", err))
	}
}

func (s *CentralSession) onServicesInvalidated(peer string, services []string) {
	if peer != s.peer || !containsUUID(services, s.opts.ServiceUUID) {
		return
	}
	s.logger.WithField("peer", peer).Warn("Chat service removed by peer")
	s.transport.CancelConnection(peer)
	s.teardown()
	s.linkFailed("service removed", nil)
	s.resume()
}
