package connection

import (
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the paho-backed Transport.
type MQTTConfig struct {
	Scheme    string        // "ws", "wss", "tcp" or "ssl"
	Path      string        // WebSocket path, ignored for tcp/ssl
	KeepAlive time.Duration // MQTT keepalive
}

// DefaultMQTTConfig matches the broker's WebSocket listener used by the web
// interface.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Scheme:    "ws",
		Path:      "/mqtt",
		KeepAlive: 30 * time.Second,
	}
}

// BrokerURL builds the paho broker address for one endpoint.
func BrokerURL(cfg MQTTConfig, host string, port int) string {
	u := url.URL{
		Scheme: cfg.Scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if cfg.Scheme == "ws" || cfg.Scheme == "wss" {
		u.Path = cfg.Path
	}
	return u.String()
}

// NewMQTTTransportFactory returns a factory of paho transports. Auto-reconnect
// is disabled; the Manager owns every retry.
func NewMQTTTransportFactory(cfg MQTTConfig, logger *slog.Logger) TransportFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func() Transport {
		return &mqttTransport{cfg: cfg, logger: logger}
	}
}

// mqttTransport implements Transport with eclipse/paho.mqtt.golang.
type mqttTransport struct {
	cfg    MQTTConfig
	logger *slog.Logger

	mu     sync.Mutex
	client mqtt.Client
	closed bool
}

// Connect opens the MQTT session asynchronously.
func (t *mqttTransport) Connect(opts ConnectOptions, cb Callbacks) {
	broker := BrokerURL(t.cfg, opts.Host, opts.Port)

	o := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(opts.Timeout).
		SetKeepAlive(t.cfg.KeepAlive).
		SetOrderMatters(true).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			cb.OnMessage(msg.Topic(), msg.Payload())
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			cb.OnConnectionLost(err)
		})

	client := mqtt.NewClient(o)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cb.OnFailure(ErrStopped)
		return
	}
	t.client = client
	t.mu.Unlock()

	t.logger.Debug("mqtt connect", "broker", broker, "client_id", opts.ClientID)

	token := client.Connect()
	go func() {
		// paho bounds the handshake by ConnectTimeout; the extra second
		// only guards against a token that never completes.
		if !token.WaitTimeout(opts.Timeout + time.Second) {
			cb.OnFailure(ErrTimeout)
			return
		}
		if err := token.Error(); err != nil {
			cb.OnFailure(err)
			return
		}
		cb.OnSuccess()
	}()
}

// Subscribe requests QoS 0 delivery for topic. Messages arrive through the
// default publish handler.
func (t *mqttTransport) Subscribe(topic string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, 0, nil)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

// Close disconnects the session.
func (t *mqttTransport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	client := t.client
	t.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(250)
	}
}
