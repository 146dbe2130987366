package broker

import "strings"

const (
	SubjectPrefix   = "finitelife"
	TaskSubject     = SubjectPrefix + ".task"
	SettingsSubject = SubjectPrefix + ".settings"
	UserSubject     = SubjectPrefix + ".user"
	SessionSubject  = SubjectPrefix + ".session"
	EventsSubject   = SubjectPrefix + ".events"

	// AllSubjects matches every subject published by the outbox
	AllSubjects = SubjectPrefix + ".>"
)

// SubjectForEntity maps an outbox entity name to the subject it is published on
func SubjectForEntity(entity string) string {
	switch strings.ToLower(entity) {
	case "task":
		return TaskSubject
	case "settings":
		return SettingsSubject
	case "user":
		return UserSubject
	case "session":
		return SessionSubject
	default:
		return EventsSubject
	}
}
