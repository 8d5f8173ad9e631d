package executor_test

import (
	"testing"
	"time"

	"github.com/srg/blepeer/internal/executor"
	"github.com/stretchr/testify/assert"
)

func TestManual_RunsInSubmissionOrder(t *testing.T) {
	m := executor.NewManual()
	var got []int

	m.Post(func() {
		got = append(got, 1)
		m.Post(func() { got = append(got, 3) })
	})
	m.Post(func() { got = append(got, 2) })

	assert.Empty(t, got, "nothing MUST run before RunPending")
	assert.Equal(t, 3, m.RunPending())
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestManual_AfterFiresOnceAtDeadline(t *testing.T) {
	m := executor.NewManual()
	fired := 0
	m.After(500*time.Millisecond, func() { fired++ })

	m.Advance(499 * time.Millisecond)
	assert.Zero(t, fired)

	m.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)

	m.Advance(time.Second)
	assert.Equal(t, 1, fired, "one-shot timer MUST NOT fire again")
	assert.Zero(t, m.ActiveTimers())
}

func TestManual_EveryUntilStopped(t *testing.T) {
	m := executor.NewManual()
	ticks := 0
	timer := m.Every(100*time.Millisecond, func() { ticks++ })

	m.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	timer.Stop()
	m.Advance(time.Second)
	assert.Equal(t, 3, ticks)
}

func TestManual_StopFromInsideCallback(t *testing.T) {
	m := executor.NewManual()
	ticks := 0
	var timer executor.Timer
	timer = m.Every(10*time.Millisecond, func() {
		ticks++
		if ticks == 2 {
			timer.Stop()
		}
	})

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 100*time.Millisecond, m.Now())
}
