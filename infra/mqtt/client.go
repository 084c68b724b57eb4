// Package mqtt connects the optimizer to an MQTT broker: a trigger
// topic feeds manual optimization requests onto the event bus, and the
// output channels of each run are published under a topic prefix.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled      bool   `json:"enabled" koanf:"enabled"`
	Broker       string `json:"broker" koanf:"broker"`
	ClientID     string `json:"client_id" koanf:"client_id"`
	Username     string `json:"username" koanf:"username"`
	Password     string `json:"password" koanf:"password"`
	UseTLS       bool   `json:"use_tls" koanf:"use_tls"`
	ClientCert   string `json:"client_cert" koanf:"client_cert"`
	ClientKey    string `json:"client_key" koanf:"client_key"`
	CABundle     string `json:"ca_bundle" koanf:"ca_bundle"`
	TriggerTopic string `json:"trigger_topic" koanf:"trigger_topic"`
	TopicPrefix  string `json:"topic_prefix" koanf:"topic_prefix"`
	QoS          byte   `json:"qos" koanf:"qos"`
	LWTTopic     string `json:"lwt_topic" koanf:"lwt_topic"`
	LWTPayload   string `json:"lwt_payload" koanf:"lwt_payload"`
	LWTRetain    bool   `json:"lwt_retain" koanf:"lwt_retain"`

	TLSConfig *tls.Config `json:"-" koanf:"-"`
}

func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "wattwise"
	}
	if c.TriggerTopic == "" {
		c.TriggerTopic = "wattwise/trigger"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "wattwise/channels"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client subscribes to the trigger topic and publishes run outputs.
type Client struct {
	cli pahoClient
	cfg Config
	bus *eventbus.Bus[eventbus.TriggerEvent]
	log logger.Logger
}

// NewClient connects to the broker. Trigger messages are forwarded to
// the event bus; the subscription is re-established on reconnect.
func NewClient(cfg Config, bus *eventbus.Bus[eventbus.TriggerEvent], log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, bus: bus, log: log}
	opts.OnConnect = func(cli paho.Client) {
		log.Infof("mqtt connected to %s", cfg.Broker)
		if token := cli.Subscribe(cfg.TriggerTopic, cfg.QoS, c.onTrigger); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.TriggerTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("mqtt connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to mqtt broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	c.cli = cli
	return c, nil
}

func newClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.loadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, cfg.LWTRetain)
	}
	return opts, nil
}

func (c Config) loadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type triggerMessage struct {
	Source string `json:"source"`
}

func (c *Client) onTrigger(_ paho.Client, msg paho.Message) {
	var m triggerMessage
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			c.log.Warnf("trigger payload ignored: %v", err)
		}
	}
	if m.Source == "" {
		m.Source = "mqtt"
	}
	c.log.Infof("manual optimization trigger from %s", m.Source)
	c.bus.Publish(eventbus.TriggerEvent{Source: m.Source, Time: time.Now()})
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
