package domain

const (
	EventNameSessionLoaded    = "session.loaded"
	EventNameSessionUpdated   = "session.updated"
	EventNameSessionSubmitted = "session.submitted"
)

// EventSessionLoaded is published when a brand-new session replaces the
// previous one.
type EventSessionLoaded struct {
	Snapshot SessionSnapshot
}

func (EventSessionLoaded) Name() string { return EventNameSessionLoaded }

// EventSessionUpdated is published on every selection change and countdown
// tick.
type EventSessionUpdated struct {
	Snapshot SessionSnapshot
}

func (EventSessionUpdated) Name() string { return EventNameSessionUpdated }

// EventSessionSubmitted is published once per session, on manual submit or
// timeout.
type EventSessionSubmitted struct {
	Snapshot SessionSnapshot
}

func (EventSessionSubmitted) Name() string { return EventNameSessionSubmitted }
