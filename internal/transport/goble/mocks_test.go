package goble

import (
	"context"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

type mockPeripheralDevice struct {
	mock.Mock
}

func (m *mockPeripheralDevice) AddService(svc *ble.Service) error {
	return m.Called(svc).Error(0)
}

func (m *mockPeripheralDevice) RemoveAllServices() error {
	return m.Called().Error(0)
}

func (m *mockPeripheralDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	return m.Called(ctx, name, uuids).Error(0)
}

func (m *mockPeripheralDevice) Stop() error {
	return m.Called().Error(0)
}

type mockCentralDevice struct {
	mock.Mock
}

func (m *mockCentralDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return m.Called(ctx, allowDup, h).Error(0)
}

func (m *mockCentralDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	c, _ := args.Get(0).(ble.Client)
	return c, args.Error(1)
}

func (m *mockCentralDevice) Stop() error {
	return m.Called().Error(0)
}

type recordingNotifier struct {
	writes [][]byte
	err    error
}

func (n *recordingNotifier) Write(b []byte) (int, error) {
	n.writes = append(n.writes, append([]byte(nil), b...))
	return len(b), n.err
}

// cancelCountingClient is a ble.Client whose only supported call is CancelConnection.
type cancelCountingClient struct {
	ble.Client
	cancels atomic.Int32
}

func (c *cancelCountingClient) CancelConnection() error {
	c.cancels.Add(1)
	return nil
}
