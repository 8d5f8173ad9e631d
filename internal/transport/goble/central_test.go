package goble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/testutils"
	"github.com/srg/blepeer/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type CentralTestSuite struct {
	suite.Suite
	dev    *mockCentralDevice
	c      *Central
	sink   *eventSink
	cancel context.CancelFunc
}

func (s *CentralTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.dev = &mockCentralDevice{}
	s.sink = &eventSink{}
	s.c = newCentral(ctx, s.dev, transport.RadioPoweredOn, logger)
	s.c.SetHandler(s.sink.handle)
}

func (s *CentralTestSuite) TearDownTest() {
	s.cancel()
}

func (s *CentralTestSuite) await(kind transport.EventKind) transport.Event {
	var ev transport.Event
	s.Require().Eventually(func() bool {
		var ok bool
		ev, ok = s.sink.find(kind)
		return ok
	}, time.Second, 5*time.Millisecond, "event %s MUST be emitted", kind)
	return ev
}

func (s *CentralTestSuite) TestScan_ReportsDiscoveries() {
	// GOAL: Verify advertisements become discovery events until the scan is stopped
	//
	// TEST SCENARIO: scan with duplicates → one advertisement → Discovered → StopScan cancels the scan context

	adv := testutils.CreateMockAdvertisement("BLE Peer", "AA:BB:CC:DD:EE:FF", -40).
		WithServices(chat.ServiceUUID).
		Build()
	stopped := make(chan struct{})

	s.dev.On("Scan", mock.Anything, true, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(ble.AdvHandler)(adv)
			<-args.Get(0).(context.Context).Done()
			close(stopped)
		}).
		Return(context.Canceled)

	s.c.StartScan(true)

	ev := s.await(transport.EventDiscovered)
	s.Require().NotNil(ev.Discovery)
	s.Equal("AA:BB:CC:DD:EE:FF", ev.Peer)
	s.Equal("BLE Peer", ev.Discovery.LocalName)
	s.Equal(-40, ev.Discovery.RSSI)

	s.c.StopScan()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		s.Fail("scan MUST stop when StopScan is called")
	}
}

func (s *CentralTestSuite) TestScan_RadioOff() {
	s.dev.On("Scan", mock.Anything, true, mock.Anything).
		Return(errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"))

	s.c.StartScan(true)

	ev := s.await(transport.EventRadioStateChanged)
	s.Equal(transport.RadioPoweredOff, ev.Radio)
	s.Equal(transport.RadioPoweredOff, s.c.RadioState())
}

func (s *CentralTestSuite) TestConnect_Failure() {
	s.dev.On("Dial", mock.Anything, mock.Anything).Return(nil, errors.New("connection timed out"))

	s.c.Connect("AA:BB:CC:DD:EE:FF")

	ev := s.await(transport.EventConnectFailed)
	s.Equal("AA:BB:CC:DD:EE:FF", ev.Peer)
	s.EqualError(ev.Err, "connection timed out")
}

func (s *CentralTestSuite) TestConnect_CancelledDialIsSilent() {
	dialing := make(chan struct{})
	s.dev.On("Dial", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(dialing)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled)

	s.c.Connect("AA:BB:CC:DD:EE:FF")
	<-dialing
	s.c.CancelConnection("AA:BB:CC:DD:EE:FF")

	s.Never(func() bool { return len(s.sink.kinds()) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"a cancelled dial MUST NOT report a failure")
}

func (s *CentralTestSuite) TestGattOps_UnknownPeer() {
	s.c.DiscoverServices("ghost", []string{chat.ServiceUUID})
	s.c.Write("ghost", chat.ServiceUUID, chat.CharacteristicUUID, []byte("hi"))

	ev := s.await(transport.EventServicesDiscovered)
	s.ErrorIs(ev.Err, ErrUnknownPeer)
	ev = s.await(transport.EventWriteAck)
	s.ErrorIs(ev.Err, ErrUnknownPeer)
}

func (s *CentralTestSuite) TestClose_CancelsLinks() {
	// GOAL: Verify Close drops every established link, even after the owner
	// context is gone
	//
	// TEST SCENARIO: one connected remote → owner context cancelled → Close →
	// the remote's CancelConnection ran once

	client := &cancelCountingClient{}
	s.c.mu.Lock()
	s.c.remotes["AA:BB:CC:DD:EE:FF"] = &remote{client: client}
	s.c.mu.Unlock()
	s.dev.On("Stop").Return(nil)
	s.cancel()

	s.Require().NoError(s.c.Close())

	s.Equal(int32(1), client.cancels.Load(), "Close MUST cancel the link")
	s.dev.AssertCalled(s.T(), "Stop")
}

func (s *CentralTestSuite) TestNoDevice() {
	c := newCentral(context.Background(), nil, transport.RadioPoweredOn, nil)
	defer c.Close()
	sink := &eventSink{}
	c.SetHandler(sink.handle)

	c.Connect("AA")

	ev, ok := sink.find(transport.EventConnectFailed)
	s.Require().True(ok)
	s.ErrorIs(ev.Err, ErrNoDevice)
}

func TestCentralTestSuite(t *testing.T) {
	suite.Run(t, new(CentralTestSuite))
}
