package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/combust-labs/darker/pkg/container"
)

func TestPermittedTransitions(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
	}{
		{StatusCreated, EventStart, StatusRunning},
		{StatusCreated, EventRemove, StatusDead},
		{StatusRunning, EventPause, StatusPaused},
		{StatusRunning, EventStop, StatusStopped},
		{StatusRunning, EventKill, StatusStopped},
		{StatusRunning, EventDie, StatusStopped},
		{StatusPaused, EventUnpause, StatusRunning},
		{StatusPaused, EventStop, StatusStopped},
		{StatusPaused, EventKill, StatusStopped},
		{StatusStopped, EventStart, StatusRunning},
		{StatusStopped, EventRemove, StatusDead},
	}
	for _, c := range cases {
		to, ok := Apply(c.from, c.ev)
		assert.True(t, ok, "%s -%s-> should be valid", c.from, c.ev)
		assert.Equal(t, c.to, to)
	}
}

func TestForbiddenTransitions(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
	}{
		{StatusCreated, EventPause},
		{StatusDead, EventStart},
		{StatusStopped, EventPause},
		{StatusPaused, EventPause},
	}
	for _, c := range cases {
		assert.False(t, IsValidTransition(c.from, c.ev), "%s -%s-> should be invalid", c.from, c.ev)
	}
}

func TestStartStopIdempotentFinalState(t *testing.T) {
	status := StatusCreated
	for _, ev := range []Event{EventStart, EventStop, EventStart, EventStop} {
		next, ok := Apply(status, ev)
		assert.True(t, ok)
		status = next
	}
	assert.Equal(t, StatusStopped, status)
}

func TestStatusFromState(t *testing.T) {
	code := 0
	assert.Equal(t, StatusCreated, StatusFromState(&container.State{}))
	assert.Equal(t, StatusRunning, StatusFromState(&container.State{Running: true}))
	assert.Equal(t, StatusPaused, StatusFromState(&container.State{Running: true, Paused: true}))
	assert.Equal(t, StatusStopped, StatusFromState(&container.State{ExitCode: &code}))
}

func TestDisplayStringExitedNotStopped(t *testing.T) {
	assert.Equal(t, "exited", StatusStopped.DisplayString())
	assert.Equal(t, "running", StatusRunning.DisplayString())
}
