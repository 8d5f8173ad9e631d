package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/executor"
	"github.com/stretchr/testify/suite"
)

// SessionSuite is the base for session tests. Every test gets a fresh
// manual scheduler and recording observer, so time and ordering are fully
// controlled by the test:
//
//	type PeripheralSuite struct {
//	    testutils.SessionSuite
//	}
//
//	func (s *PeripheralSuite) TestSomething() {
//	    session.StartAdvertising()
//	    s.Sched.RunPending()
//	}
type SessionSuite struct {
	suite.Suite

	Helper   *TestHelper
	Logger   *logrus.Logger
	Sched    *executor.Manual
	Observer *RecordingObserver
}

// SetupTest creates the per-test scheduler and observer. Suites overriding
// it must call it first.
func (s *SessionSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Sched = executor.NewManual()
	s.Observer = &RecordingObserver{}
}

// Drain runs every queued callback.
func (s *SessionSuite) Drain() {
	s.Sched.RunPending()
}
