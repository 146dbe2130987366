package services

import (
	"log"
	"sync"
)

// Mailer delivers auth emails
type Mailer interface {
	Send(to, subject, body string) error
}

// LogMailer writes emails to the log instead of sending them
type LogMailer struct{}

func (LogMailer) Send(to, subject, body string) error {
	log.Printf("Email to %s: %s\n%s", to, subject, body)
	return nil
}

// Mail is a message captured by a RecordingMailer
type Mail struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer keeps sent messages in memory
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Mail
}

func (m *RecordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the captured messages
func (m *RecordingMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}
