package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/internal/eventbus"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed map[string]paho.MessageHandler
	published  []published
	publishErr error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, retained, payload.([]byte)})
	return dummyToken{err: m.publishErr}
}
func (m *mockClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	if m.subscribed == nil {
		m.subscribed = make(map[string]paho.MessageHandler)
	}
	m.subscribed[topic] = cb
	return dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func withMockClient(t *testing.T) *mockClient {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	return mc
}

func TestTriggerSubscriptionForwardsToBus(t *testing.T) {
	mc := withMockClient(t)
	bus := eventbus.New[eventbus.TriggerEvent]()
	events, cancel := bus.Subscribe()
	defer cancel()

	c, err := NewClient(Config{Broker: "tcp://localhost:1883"}, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	handler, ok := mc.subscribed["wattwise/trigger"]
	if !ok {
		t.Fatalf("trigger topic not subscribed: %v", mc.subscribed)
	}

	handler(mc, mockMessage{p: []byte(`{"source":"dashboard"}`)})
	select {
	case ev := <-events:
		if ev.Source != "dashboard" {
			t.Fatalf("event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no trigger event published")
	}

	// An empty payload still triggers, with the default source.
	handler(mc, mockMessage{})
	if ev := <-events; ev.Source != "mqtt" {
		t.Fatalf("default source %q", ev.Source)
	}
}

func TestPublishChannels(t *testing.T) {
	mc := withMockClient(t)
	c, err := NewClient(Config{Broker: "tcp://localhost:1883"}, eventbus.New[eventbus.TriggerEvent](), logger.NopLogger{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	anchor := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	err = c.Publish(context.Background(), []model.Channel{
		model.NumericChannel("discharge", "kW", []model.Point{{Time: anchor, Value: 2}}),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(mc.published) != 1 {
		t.Fatalf("published %d messages", len(mc.published))
	}
	msg := mc.published[0]
	if msg.topic != "wattwise/channels/discharge" || !msg.retained {
		t.Fatalf("message %+v", msg)
	}
	var ch model.Channel
	if err := json.Unmarshal(msg.payload, &ch); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ch.Name != "discharge" || ch.Value != 2 {
		t.Fatalf("channel %+v", ch)
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := newClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}
