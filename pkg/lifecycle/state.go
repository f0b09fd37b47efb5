// Package lifecycle implements the container state machine and the
// create/run/start/stop/exec/remove operations that drive it, coordinating the
// container store, rootfs builder, and process supervisor.
package lifecycle

import "github.com/combust-labs/darker/pkg/container"

// Status is one of the five lifecycle states.
type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusDead    Status = "dead"
)

// Event is a lifecycle transition trigger.
type Event string

const (
	EventCreate  Event = "create"
	EventStart   Event = "start"
	EventPause   Event = "pause"
	EventUnpause Event = "unpause"
	EventStop    Event = "stop"
	EventKill    Event = "kill"
	EventDie     Event = "die"
	EventRemove  Event = "remove"
)

// StatusFromState derives the current Status from a container State
// record: running && paused → paused; running → running; else
// exit_code.is_some() → stopped; else created. Note: the "stopped"
// status is reported to callers as "exited", per the source's naming.
func StatusFromState(s *container.State) Status {
	if s.Running && s.Paused {
		return StatusPaused
	}
	if s.Running {
		return StatusRunning
	}
	if s.ExitCode != nil {
		return StatusStopped
	}
	return StatusCreated
}

// DisplayString renders a Status the way the CLI prints it: "stopped"
// is displayed as "exited".
func (s Status) DisplayString() string {
	if s == StatusStopped {
		return "exited"
	}
	return string(s)
}

var transitions = map[Status]map[Event]Status{
	StatusCreated: {
		EventStart:  StatusRunning,
		EventRemove: StatusDead,
	},
	StatusRunning: {
		EventPause: StatusPaused,
		EventStop:  StatusStopped,
		EventKill:  StatusStopped,
		EventDie:   StatusStopped,
	},
	StatusPaused: {
		EventUnpause: StatusRunning,
		EventStop:    StatusStopped,
		EventKill:    StatusStopped,
	},
	StatusStopped: {
		EventStart:  StatusRunning,
		EventRemove: StatusDead,
	},
}

// IsValidTransition reports whether event is permitted from status.
func IsValidTransition(from Status, event Event) bool {
	_, ok := Apply(from, event)
	return ok
}

// Apply returns the resulting Status of firing event from from, and
// whether that transition is permitted.
func Apply(from Status, event Event) (Status, bool) {
	byEvent, ok := transitions[from]
	if !ok {
		return from, false
	}
	to, ok := byEvent[event]
	return to, ok
}
