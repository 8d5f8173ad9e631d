package session_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/testutils"
	"github.com/srg/blepeer/internal/transport"
	"github.com/stretchr/testify/suite"
)

type CentralSessionTestSuite struct {
	testutils.SessionSuite

	fake    *testutils.FakeCentral
	session *session.CentralSession
}

func (s *CentralSessionTestSuite) SetupTest() {
	s.SessionSuite.SetupTest()
	s.fake = testutils.NewFakeCentral(transport.RadioPoweredOn)
	s.session = s.newSession(nil)
}

func (s *CentralSessionTestSuite) newSession(opts *session.Options) *session.CentralSession {
	cs := session.NewCentralSession(s.fake, s.Sched, s.Observer, opts, s.Logger)
	cs.Start()
	s.Drain()
	return cs
}

func (s *CentralSessionTestSuite) scan() {
	s.session.StartScanning()
	s.Drain()
	s.Require().True(s.session.Scanning(), "session MUST be scanning")
}

func (s *CentralSessionTestSuite) discover(id string, rssi int) {
	s.fake.Emit(transport.Event{
		Kind: transport.EventDiscovered,
		Peer: id,
		Discovery: &transport.Discovery{
			ID:        id,
			LocalName: "peer-" + id,
			RSSI:      rssi,
			Services:  []string{chat.ServiceUUID},
		},
	})
	s.Drain()
}

func (s *CentralSessionTestSuite) tick() {
	s.Sched.Advance(chat.DeviceListUpdateInterval)
}

func (s *CentralSessionTestSuite) emit(ev transport.Event) {
	s.fake.Emit(ev)
	s.Drain()
}

// link walks the full connect and discovery chain to a ready peer.
func (s *CentralSessionTestSuite) link(id string) {
	s.scan()
	s.discover(id, -50)
	s.session.Connect(id)
	s.Drain()
	s.emit(transport.Event{Kind: transport.EventConnected, Peer: id})
	s.emit(transport.Event{Kind: transport.EventServicesDiscovered, Peer: id, Services: []string{chat.ServiceUUID}})
	s.emit(transport.Event{Kind: transport.EventCharacteristicsDiscovered, Peer: id, Service: chat.ServiceUUID,
		Characteristics: []string{chat.CharacteristicUUID}})
	s.emit(transport.Event{Kind: transport.EventNotifySubscribed, Peer: id, Characteristic: chat.CharacteristicUUID})
	s.Require().True(s.session.Ready(), "peer MUST be ready")
}

func peerIDs(peers []registry.DiscoveredPeer) []string {
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.ID
	}
	return out
}

func (s *CentralSessionTestSuite) TestRegistryPublishedSortedBySignal() {
	// GOAL: Verify discovered peers are published in batches, strongest first
	//
	// TEST SCENARIO: A at -40 and B at -60 within one interval → [A, B]; B again at -30 → [B, A]

	s.scan()
	s.discover("A", -40)
	s.discover("B", -60)
	s.Empty(s.Observer.DeviceUpdates(), "discoveries MUST wait for the batch tick")

	s.tick()
	updates := s.Observer.DeviceUpdates()
	s.Require().Len(updates, 1)
	s.Equal([]string{"A", "B"}, peerIDs(updates[0]))

	s.discover("B", -30)
	s.tick()
	updates = s.Observer.DeviceUpdates()
	s.Require().Len(updates, 2)
	s.Equal([]string{"B", "A"}, peerIDs(updates[1]))
	s.Equal([]string{"B", "A"}, peerIDs(s.session.Devices()))
}

func (s *CentralSessionTestSuite) TestRegistryUnchangedIsNotRepublished() {
	s.scan()
	s.discover("A", -40)
	s.tick()

	s.discover("A", -40)
	s.tick()
	s.tick()

	s.Len(s.Observer.DeviceUpdates(), 1, "identical batches MUST NOT notify")
}

func (s *CentralSessionTestSuite) TestStartScanning_RadioNotReady() {
	s.fake = testutils.NewFakeCentral(transport.RadioUnauthorized)
	s.session = s.newSession(nil)

	s.session.StartScanning()
	s.Drain()

	s.ErrorIs(s.Observer.LastError(), session.ErrRadioUnavailable)
	s.False(s.session.Scanning())
	s.Empty(s.fake.Calls())
	s.Equal(link.Idle, s.session.State())
}

func (s *CentralSessionTestSuite) TestStartScanning_Idempotent() {
	s.scan()
	s.scan()

	starts := s.fake.CallsTo("StartScan")
	s.Require().Len(starts, 1, "second start MUST be a no-op")
	s.Equal([]any{true}, starts[0].Args, "scan MUST allow duplicates")
	s.Equal(1, s.Sched.ActiveTimers(), "one batch timer MUST run")
	s.Equal(link.Active, s.session.State())
}

func (s *CentralSessionTestSuite) TestStartScanning_ClearsRegistry() {
	s.scan()
	s.discover("A", -40)
	s.tick()
	s.session.StopScanning()
	s.Drain()

	s.scan()

	updates := s.Observer.DeviceUpdates()
	s.Require().NotEmpty(updates)
	s.Empty(updates[len(updates)-1], "restart MUST publish an empty list")
	s.Empty(s.session.Devices())
}

func (s *CentralSessionTestSuite) TestStopScanning_FinalFlushAndIdempotent() {
	s.scan()
	s.discover("A", -40)

	s.session.StopScanning()
	s.Drain()

	updates := s.Observer.DeviceUpdates()
	s.Require().Len(updates, 1, "stop MUST flush pending discoveries")
	s.Equal([]string{"A"}, peerIDs(updates[0]))
	s.Equal(link.Idle, s.session.State())
	s.Zero(s.Sched.ActiveTimers(), "batch timer MUST be stopped")
	s.Len(s.fake.CallsTo("StopScan"), 1)

	s.session.StopScanning()
	s.Drain()
	s.Len(s.fake.CallsTo("StopScan"), 1, "second stop MUST be a no-op")

	s.discover("B", -20)
	s.tick()
	s.Len(s.Observer.DeviceUpdates(), 1, "discoveries after stop MUST be ignored")
}

func (s *CentralSessionTestSuite) TestConnect_DiscoveryChain() {
	// GOAL: Verify connect runs service, characteristic and notification discovery in order
	//
	// TEST SCENARIO: scan → A discovered → connect(A) → connected → services → characteristics → subscribed

	s.link("A")

	s.Equal([]string{
		"StartScan", "Connect", "StopScan", "DiscoverServices", "DiscoverCharacteristics", "Subscribe",
	}, s.fake.Methods())
	s.Equal([]any{"A", []string{chat.ServiceUUID}}, s.fake.CallsTo("DiscoverServices")[0].Args)
	s.Equal([]any{"A", chat.ServiceUUID, []string{chat.CharacteristicUUID}},
		s.fake.CallsTo("DiscoverCharacteristics")[0].Args)
	s.Equal([]link.State{link.Active, link.Linking, link.Connected}, s.Observer.States())
	s.False(s.session.Scanning(), "scan MUST stop once connected")
	s.Equal("A", s.session.Peer())
	s.True(s.session.ConnectionStatus().Equal(session.ConnectionStatus{Kind: session.StatusConnected}))
	s.Empty(s.Observer.Errors())
}

func (s *CentralSessionTestSuite) TestConnect_NoOpWhileLinking() {
	s.scan()
	s.discover("A", -40)
	s.discover("B", -50)

	s.session.Connect("A")
	s.session.Connect("B")
	s.Drain()

	connects := s.fake.CallsTo("Connect")
	s.Require().Len(connects, 1)
	s.Equal([]any{"A"}, connects[0].Args)
	s.Equal("A", s.session.Peer())
	s.Empty(s.Observer.Errors())
}

func (s *CentralSessionTestSuite) TestConnect_UnknownPeer() {
	s.scan()

	s.session.Connect("ghost")
	s.Drain()

	s.ErrorIs(s.Observer.LastError(), session.ErrInvalidState)
	s.Empty(s.fake.CallsTo("Connect"))
	s.Equal(link.Active, s.session.State())
}

func (s *CentralSessionTestSuite) TestConnect_FromStoppedScan() {
	s.scan()
	s.discover("A", -40)
	s.session.StopScanning()
	s.Drain()

	s.session.Connect("A")
	s.Drain()

	s.Equal(link.Linking, s.session.State())
	s.Len(s.fake.CallsTo("Connect"), 1)
}

func (s *CentralSessionTestSuite) TestConnectFailed_ReturnsToScanning() {
	s.scan()
	s.discover("A", -40)
	s.session.Connect("A")
	s.Drain()

	s.emit(transport.Event{Kind: transport.EventConnectFailed, Peer: "A", Err: errors.New("peer unreachable")})

	err := s.Observer.LastError()
	s.ErrorIs(err, session.ErrLinkFailed)
	s.Contains(err.Error(), "peer unreachable", "reason MUST come from the transport")
	s.Equal([]link.State{link.Active, link.Linking, link.Idle, link.Active}, s.Observer.States())
	s.True(s.session.Scanning())
	s.Empty(s.session.Peer())
	s.True(s.session.ConnectionStatus().Equal(session.ConnectionStatus{
		Kind: session.StatusError, Reason: "peer unreachable",
	}))
}

func (s *CentralSessionTestSuite) TestConnectFailed_DefaultReason() {
	s.scan()
	s.discover("A", -40)
	s.session.Connect("A")
	s.Drain()

	s.emit(transport.Event{Kind: transport.EventConnectFailed, Peer: "A"})

	s.Equal("link_failed: Connection failed", s.Observer.LastError().Error())
}

func (s *CentralSessionTestSuite) TestDiscoveryFailures_TearDownLink() {
	tests := []struct {
		name   string
		events []transport.Event
		reason string
	}{
		{
			name:   "service discovery error",
			events: []transport.Event{{Kind: transport.EventServicesDiscovered, Peer: "A", Err: errors.New("gatt")}},
			reason: "service discovery failed",
		},
		{
			name:   "service missing",
			events: []transport.Event{{Kind: transport.EventServicesDiscovered, Peer: "A"}},
			reason: "chat service not found",
		},
		{
			name: "characteristic missing",
			events: []transport.Event{
				{Kind: transport.EventServicesDiscovered, Peer: "A", Services: []string{chat.ServiceUUID}},
				{Kind: transport.EventCharacteristicsDiscovered, Peer: "A"},
			},
			reason: "chat characteristic not found",
		},
		{
			name: "subscribe error",
			events: []transport.Event{
				{Kind: transport.EventServicesDiscovered, Peer: "A", Services: []string{chat.ServiceUUID}},
				{Kind: transport.EventCharacteristicsDiscovered, Peer: "A", Characteristics: []string{chat.CharacteristicUUID}},
				{Kind: transport.EventNotifySubscribed, Peer: "A", Err: errors.New("not permitted")},
			},
			reason: "subscribe failed",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.scan()
			s.discover("A", -40)
			s.session.Connect("A")
			s.Drain()
			s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})

			for _, ev := range tt.events {
				s.emit(ev)
			}

			err := s.Observer.LastError()
			s.ErrorIs(err, session.ErrLinkFailed)
			s.Contains(err.Error(), tt.reason)
			s.Len(s.fake.CallsTo("CancelConnection"), 1, "failed link MUST be cancelled")
			s.Empty(s.session.Peer())
			s.False(s.session.Ready())
			s.Equal(link.Active, s.session.State(), "session MUST resume scanning")
			s.Len(s.fake.CallsTo("StartScan"), 2)
			s.Equal(err, s.session.LastError(), "auto-restart MUST keep the link error")
		})
	}
}

func (s *CentralSessionTestSuite) TestSendMessage_Validation() {
	tests := []struct {
		name    string
		prepare func()
		text    string
		want    *session.Error
	}{
		{"not connected", func() { s.scan() }, "hi", session.ErrNotReady},
		{"too long", func() { s.link("A") }, strings.Repeat("x", 600), session.ErrMessageTooLong},
		{"service not discovered", func() {
			s.scan()
			s.discover("A", -40)
			s.session.Connect("A")
			s.Drain()
			s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})
		}, "hi", session.ErrServiceNotFound},
		{"characteristic not discovered", func() {
			s.scan()
			s.discover("A", -40)
			s.session.Connect("A")
			s.Drain()
			s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})
			s.emit(transport.Event{Kind: transport.EventServicesDiscovered, Peer: "A", Services: []string{chat.ServiceUUID}})
		}, "hi", session.ErrCharacteristicNotFound},
		{"notifications not subscribed", func() {
			s.scan()
			s.discover("A", -40)
			s.session.Connect("A")
			s.Drain()
			s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})
			s.emit(transport.Event{Kind: transport.EventServicesDiscovered, Peer: "A", Services: []string{chat.ServiceUUID}})
			s.emit(transport.Event{Kind: transport.EventCharacteristicsDiscovered, Peer: "A", Service: chat.ServiceUUID,
				Characteristics: []string{chat.CharacteristicUUID}})
		}, "hi", session.ErrNotReady},
		{"invalid utf-8", func() { s.link("A") }, string([]byte{0xff}), session.ErrEncodingFailed},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			tt.prepare()
			s.fake.ResetCalls()

			s.session.SendMessage(tt.text)
			s.Drain()

			s.ErrorIs(s.Observer.LastError(), tt.want)
			s.Empty(s.session.Messages(), "failed send MUST NOT touch the log")
			s.Empty(s.fake.CallsTo("Write"), "failed send MUST NOT reach the transport")
		})
	}
}

func (s *CentralSessionTestSuite) TestSendAndReceive() {
	s.link("A")

	s.session.SendMessage("hello")
	s.Drain()
	s.emit(transport.Event{Kind: transport.EventWriteAck, Peer: "A"})
	s.emit(transport.Event{Kind: transport.EventNotifyReceived, Peer: "A", Data: []byte("hi back")})
	s.emit(transport.Event{Kind: transport.EventNotifyReceived, Peer: "A", Data: []byte{0xc3, 0x28}})

	writes := s.fake.CallsTo("Write")
	s.Require().Len(writes, 1)
	s.Equal([]any{"A", chat.ServiceUUID, chat.CharacteristicUUID, []byte("hello")}, writes[0].Args)
	s.Equal([]string{"hello", "hi back"}, testutils.Texts(s.session.Messages()), "malformed notification MUST be dropped")
	s.Equal([]chat.Direction{chat.Sent, chat.Received}, testutils.Directions(s.session.Messages()))
	s.Empty(s.Observer.Errors())
}

func (s *CentralSessionTestSuite) TestWriteAckError() {
	s.link("A")

	s.emit(transport.Event{Kind: transport.EventWriteAck, Peer: "A", Err: errors.New("write not permitted")})

	s.ErrorIs(s.Observer.LastError(), session.ErrSendFailed)
	s.Contains(s.Observer.LastError().Error(), "Failed to send message")
}

func (s *CentralSessionTestSuite) TestDisconnect_ClearsAndResumes() {
	// GOAL: Verify an explicit disconnect cancels the link and clears the conversation
	//
	// TEST SCENARIO: ready peer, one message → disconnect → cancel, Disconnecting → Idle → scanning again

	s.link("A")
	s.session.SendMessage("hello")
	s.Drain()
	s.Observer.Reset()

	s.session.Disconnect()
	s.Drain()

	s.Equal([]any{"A"}, s.fake.CallsTo("CancelConnection")[0].Args)
	s.Equal([]link.State{link.Disconnecting, link.Idle, link.Active}, s.Observer.States())
	s.Empty(s.session.Messages())
	s.Empty(s.session.Peer())
	s.True(s.session.ConnectionStatus().Equal(session.ConnectionStatus{Kind: session.StatusDisconnected}))
	s.Empty(s.Observer.Errors())
}

func (s *CentralSessionTestSuite) TestDisconnect_CancelsPendingConnect() {
	s.scan()
	s.discover("A", -40)
	s.session.Connect("A")
	s.session.Disconnect()
	s.Drain()

	s.Len(s.fake.CallsTo("CancelConnection"), 1)
	s.Equal(link.Active, s.session.State())

	// The late connect is stale.
	s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})
	s.Equal(link.Active, s.session.State())
	s.Empty(s.fake.CallsTo("DiscoverServices"))
}

func (s *CentralSessionTestSuite) TestDisconnect_NoRestartWhenDisabled() {
	s.session = s.newSession(&session.Options{DisableAutoRestart: true})
	s.link("A")

	s.session.Disconnect()
	s.Drain()

	s.Equal(link.Idle, s.session.State())
	s.Len(s.fake.CallsTo("StartScan"), 1)
}

func (s *CentralSessionTestSuite) TestPeerDisconnected() {
	s.link("A")
	s.session.SendMessage("hello")
	s.Drain()

	s.emit(transport.Event{Kind: transport.EventDisconnected, Peer: "A", Err: errors.New("supervision timeout")})

	s.ErrorIs(s.Observer.LastError(), session.ErrLinkFailed)
	s.Empty(s.session.Messages())
	s.Equal(link.Active, s.session.State())
}

func (s *CentralSessionTestSuite) TestPeerDisconnectedWhileLinking() {
	// GOAL: Verify a disconnect before the link is established fails the connect attempt
	//
	// TEST SCENARIO: connect to A → transport reports A disconnected while Linking →
	// Linking → Idle with LinkFailed, no Disconnecting step → scanning resumes

	s.scan()
	s.discover("A", -40)
	s.session.Connect("A")
	s.Drain()
	s.Observer.Reset()

	s.emit(transport.Event{Kind: transport.EventDisconnected, Peer: "A", Err: errors.New("le connection aborted")})

	err := s.Observer.LastError()
	s.ErrorIs(err, session.ErrLinkFailed)
	s.Contains(err.Error(), "le connection aborted")
	s.Equal([]link.State{link.Idle, link.Active}, s.Observer.States(),
		"an unestablished link MUST fail straight to Idle")
	s.Empty(s.session.Peer())
	s.False(s.session.Ready())
	s.True(s.session.Scanning())
	s.True(s.session.ConnectionStatus().Equal(session.ConnectionStatus{
		Kind: session.StatusError, Reason: "le connection aborted",
	}))

	// The late connect is stale.
	s.emit(transport.Event{Kind: transport.EventConnected, Peer: "A"})
	s.Equal(link.Active, s.session.State())
	s.Empty(s.fake.CallsTo("DiscoverServices"))
}

func (s *CentralSessionTestSuite) TestPeerDisconnected_Clean() {
	s.link("A")

	s.emit(transport.Event{Kind: transport.EventDisconnected, Peer: "A"})

	s.Empty(s.Observer.Errors(), "a clean disconnect MUST NOT surface an error")
	s.Equal(link.Active, s.session.State())
}

func (s *CentralSessionTestSuite) TestServicesInvalidated() {
	s.link("A")

	s.emit(transport.Event{Kind: transport.EventServicesInvalidated, Peer: "A", Services: []string{"180F"}})
	s.Equal(link.Connected, s.session.State(), "unrelated services MUST be ignored")

	s.emit(transport.Event{Kind: transport.EventServicesInvalidated, Peer: "A", Services: []string{chat.ServiceUUID}})

	err := s.Observer.LastError()
	s.ErrorIs(err, session.ErrLinkFailed)
	s.Equal("link_failed: service removed", err.Error())
	s.Len(s.fake.CallsTo("CancelConnection"), 1)
	s.Empty(s.session.Peer())
}

func (s *CentralSessionTestSuite) TestRadioLost() {
	s.link("A")
	s.session.SendMessage("hello")
	s.Drain()

	s.fake.SetRadio(transport.RadioPoweredOff)
	s.Drain()

	s.Equal(link.Idle, s.session.State())
	s.Empty(s.session.Messages())
	s.ErrorIs(s.Observer.LastError(), session.ErrRadioUnavailable)
	s.Equal(transport.RadioPoweredOff, s.session.Radio())

	s.fake.SetRadio(transport.RadioPoweredOn)
	s.Drain()
	s.Nil(s.session.LastError(), "radio recovery MUST clear the error")
}

// Every disconnect cause leaves an empty log and no dangling link.
func (s *CentralSessionTestSuite) TestDisconnectCausesLeaveNoDanglingLink() {
	causes := map[string]func(){
		"explicit": func() { s.session.Disconnect(); s.Drain() },
		"peer":     func() { s.emit(transport.Event{Kind: transport.EventDisconnected, Peer: "A"}) },
		"invalidated": func() {
			s.emit(transport.Event{Kind: transport.EventServicesInvalidated, Peer: "A", Services: []string{chat.ServiceUUID}})
		},
		"radio": func() { s.fake.SetRadio(transport.RadioPoweredOff); s.Drain() },
	}

	for name, cause := range causes {
		s.Run(name, func() {
			s.SetupTest()
			s.link("A")
			s.session.SendMessage("hello")
			s.Drain()

			cause()

			s.Empty(s.session.Messages())
			s.True(s.session.State() == link.Idle || s.session.State() == link.Active,
				"state MUST be idle or active, got %s", s.session.State())
		})
	}
}

func (s *CentralSessionTestSuite) TestClose() {
	s.link("A")

	s.session.Close()
	s.Drain()

	s.Equal(link.Idle, s.session.State())
	s.False(s.fake.Attached())
	s.Len(s.fake.CallsTo("StartScan"), 1, "close MUST NOT restart scanning")
}

func TestCentralSessionTestSuite(t *testing.T) {
	suite.Run(t, new(CentralSessionTestSuite))
}
