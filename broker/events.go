package broker

type EventType string

const (
	// Standardized event types in format: <resource>.<action>
	TaskCreated     EventType = "task.created"
	TaskUpdated     EventType = "task.updated"
	TaskDeleted     EventType = "task.deleted"
	TaskDecremented EventType = "task.decremented"

	SettingsUpdated EventType = "settings.updated"

	// User events
	UserCreated   EventType = "user.created"
	UserConfirmed EventType = "user.confirmed"

	// Session events
	SessionStarted EventType = "session.started"
	SessionEnded   EventType = "session.ended"
)
