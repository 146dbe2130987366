package broker

import (
	"log"
	"sync"

	"finite-life/finitelife/config"

	"github.com/nats-io/nats.go"
)

// Message is a broker message as the rest of the backend sees it
type Message struct {
	Subject string
	Key     string
	Data    []byte
}

// Consumer delivers messages from a set of subjects on a channel
type Consumer interface {
	GetMessageChannel() <-chan Message
	Close()
}

type natsConsumer struct {
	conn     *nats.Conn
	subs     []*nats.Subscription
	messages chan Message
	mu       sync.RWMutex
	closed   bool
}

var (
	consumers   []Consumer
	consumersMu sync.Mutex
)

// InitConsumer subscribes to subjects. With a non-empty group the subscriptions join
// a queue group, so each message reaches one member of the group.
func InitConsumer(cfg config.Config, subjects []string, group string) (Consumer, error) {
	conn, err := connect(cfg, "finitelife-consumer")
	if err != nil {
		return nil, err
	}

	c := &natsConsumer{
		conn:     conn,
		messages: make(chan Message, 256),
	}

	for _, subject := range subjects {
		var sub *nats.Subscription
		if group != "" {
			sub, err = conn.QueueSubscribe(subject, group, c.handle)
		} else {
			sub, err = conn.Subscribe(subject, c.handle)
		}
		if err != nil {
			c.Close()
			return nil, err
		}
		c.subs = append(c.subs, sub)
	}

	consumersMu.Lock()
	consumers = append(consumers, c)
	consumersMu.Unlock()

	log.Printf("NATS consumer started, listening to subjects: %v", subjects)
	return c, nil
}

func (c *natsConsumer) handle(msg *nats.Msg) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.messages <- FromNats(msg):
	default:
		log.Printf("Consumer buffer full, dropping message on %s", msg.Subject)
	}
}

func (c *natsConsumer) GetMessageChannel() <-chan Message {
	return c.messages
}

func (c *natsConsumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.conn.Close()
	close(c.messages)
}

// FromNats converts a NATS message, reading the event name from its header
func FromNats(msg *nats.Msg) Message {
	m := Message{Subject: msg.Subject, Data: msg.Data}
	if msg.Header != nil {
		m.Key = msg.Header.Get(EventTypeHeader)
	}
	return m
}

func CloseAllConsumers() {
	consumersMu.Lock()
	defer consumersMu.Unlock()
	for _, c := range consumers {
		c.Close()
	}
	consumers = nil
}
