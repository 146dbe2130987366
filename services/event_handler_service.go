package services

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/database"
	"finite-life/finitelife/models"

	"github.com/robfig/cron/v3"
)

// DefaultDispatchSchedule is used when no schedule is configured
const DefaultDispatchSchedule = "@every 1s"

const dispatchBatchSize = 100

type EventHandlerServiceInterface interface {
	Start() error
	Stop()
	ProcessPendingEvents() (int, error)
}

// EventHandlerService publishes outbox rows to the broker on a cron schedule
type EventHandlerService struct {
	db       *database.Database
	producer broker.Producer
	schedule string

	mu        sync.Mutex
	cron      *cron.Cron
	isRunning bool
}

func NewEventHandlerService(db *database.Database, producer broker.Producer, schedule string) *EventHandlerService {
	if schedule == "" {
		schedule = DefaultDispatchSchedule
	}
	return &EventHandlerService{
		db:       db,
		producer: producer,
		schedule: schedule,
	}
}

func (s *EventHandlerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.ProcessPendingEvents(); err != nil {
			log.Printf("Error processing pending events: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.isRunning = true
	log.Printf("Event dispatcher started with schedule %q", s.schedule)
	return nil
}

func (s *EventHandlerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
}

// ProcessPendingEvents publishes undispatched events oldest first and returns how
// many were sent. An event that fails to publish stays pending for the next run.
func (s *EventHandlerService) ProcessPendingEvents() (int, error) {
	if s.producer == nil {
		return 0, broker.ErrProducerNotInitialized
	}

	var events []models.Event
	if err := s.db.DB.Where("dispatched = ?", false).
		Order("timestamp ASC").
		Limit(dispatchBatchSize).
		Find(&events).Error; err != nil {
		return 0, err
	}

	if len(events) > 0 {
		log.Printf("Found %d pending events to process", len(events))
	}

	sent := 0
	var errs []error
	for _, event := range events {
		if err := s.dispatchEvent(event); err != nil {
			log.Printf("Error dispatching event %s: %v", event.ID, err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func (s *EventHandlerService) dispatchEvent(event models.Event) error {
	jsonData, err := json.Marshal(EnvelopeFor(event))
	if err != nil {
		return err
	}

	subject := broker.SubjectForEntity(event.Entity)
	if err := s.producer.Publish(subject, event.Event, jsonData); err != nil {
		return err
	}

	now := time.Now()
	return s.db.DB.Model(&event).Updates(map[string]interface{}{
		"dispatched":    true,
		"dispatched_at": now,
		"status":        "completed",
	}).Error
}

// EventEnvelope is the message body published for an outbox event
type EventEnvelope struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

type EventPayload struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Entity    string          `json:"entity"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func EnvelopeFor(event models.Event) EventEnvelope {
	data := event.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return EventEnvelope{
		Type: event.Event,
		Payload: EventPayload{
			EventID:   event.ID.String(),
			Type:      event.Event,
			Entity:    event.Entity,
			UserID:    event.UserID.String(),
			Timestamp: event.Timestamp,
			Data:      data,
		},
	}
}

var EventHandlerServiceInstance EventHandlerServiceInterface
