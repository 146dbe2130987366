package broker

import (
	"errors"
	"log"
	"time"

	"finite-life/finitelife/config"

	"github.com/nats-io/nats.go"
)

// EventTypeHeader carries the event name next to the payload
const EventTypeHeader = "Event-Type"

var ErrProducerNotInitialized = errors.New("message producer is not initialized")

// Producer publishes outbox events
type Producer interface {
	Publish(subject string, key string, value []byte) error
	Close()
}

type natsProducer struct {
	conn *nats.Conn
}

// DefaultProducer is set by InitProducer
var DefaultProducer Producer

func InitProducer(cfg config.Config) error {
	conn, err := connect(cfg, "finitelife-producer")
	if err != nil {
		return err
	}
	DefaultProducer = &natsProducer{conn: conn}
	log.Printf("NATS producer connected to %s", conn.ConnectedUrl())
	return nil
}

func (p *natsProducer) Publish(subject string, key string, value []byte) error {
	msg := nats.NewMsg(subject)
	msg.Header.Set(EventTypeHeader, key)
	msg.Data = value
	return p.conn.PublishMsg(msg)
}

func (p *natsProducer) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("Failed to drain NATS producer: %v", err)
	}
}

// PublishMessage publishes through DefaultProducer
func PublishMessage(subject string, key string, value string) error {
	if DefaultProducer == nil {
		return ErrProducerNotInitialized
	}
	return DefaultProducer.Publish(subject, key, []byte(value))
}

func CloseProducer() {
	if DefaultProducer != nil {
		DefaultProducer.Close()
		DefaultProducer = nil
	}
}

func connect(cfg config.Config, name string) (*nats.Conn, error) {
	return nats.Connect(cfg.NatsURL,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS %s disconnected: %v", name, err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS %s reconnected to %s", name, nc.ConnectedUrl())
		}),
	)
}
