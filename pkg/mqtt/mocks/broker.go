package mocks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/absmach/fedledger/pkg/mqtt"
)

// Broker is an in-process MQTT stand-in. Messages are JSON round-tripped
// and delivered synchronously to every matching subscription, with the
// '+' and '#' wildcards honoured.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Conn]map[string]mqtt.Handler
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*Conn]map[string]mqtt.Handler)}
}

// Connect returns a PubSub attached to the broker. willTopic, when set, is
// published to with an offline notice on Drop.
func (b *Broker) Connect(id, willTopic string) *Conn {
	c := &Conn{broker: b, id: id, willTopic: willTopic}

	b.mu.Lock()
	b.subs[c] = make(map[string]mqtt.Handler)
	b.mu.Unlock()

	return c
}

func (b *Broker) publish(topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var targets []mqtt.Handler

	b.mu.RLock()
	for _, subs := range b.subs {
		for filter, h := range subs {
			if Match(filter, topic) {
				targets = append(targets, h)
			}
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		_ = h(topic, payload)
	}

	return nil
}

type Conn struct {
	broker    *Broker
	id        string
	willTopic string
}

var _ mqtt.PubSub = (*Conn)(nil)

func (c *Conn) Publish(_ context.Context, topic string, msg any) error {
	return c.broker.publish(topic, msg)
}

func (c *Conn) Subscribe(_ context.Context, topic string, handler mqtt.Handler) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	if subs, ok := c.broker.subs[c]; ok {
		subs[topic] = handler
	}

	return nil
}

func (c *Conn) Unsubscribe(_ context.Context, topic string) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	delete(c.broker.subs[c], topic)

	return nil
}

func (c *Conn) Disconnect(_ context.Context) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	delete(c.broker.subs, c)

	return nil
}

// Drop simulates an unclean disconnect, firing the last will.
func (c *Conn) Drop() {
	_ = c.Disconnect(context.Background())
	if c.willTopic != "" {
		_ = c.broker.publish(c.willTopic, map[string]any{"status": "offline", "client_id": c.id})
	}
}

// Match reports whether an MQTT topic filter matches a topic.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}

	return len(fp) == len(tp)
}
