package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the presence telemetry sink.
//
// It provides connection management, message publishing and an explicit
// Reconnect used by the scan scheduler at cycle boundaries.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Reconnect serialises concurrent callers; only one dial runs at a time.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	room    string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// reconnectMu prevents overlapping reconnect dials.
	reconnectMu sync.Mutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) on the room status topic
//  3. Attempts initial connection with timeout
//  4. Publishes online status
//
// A failure here is fatal for the agent; there is no background retry.
//
// Parameters:
//   - cfg: MQTT configuration from presence.yaml
//   - room: Room identifier used for the status topic
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig, room string) (*Client, error) {
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = generateClientID()
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID, room)

	c := &Client{
		cfg:     cfg,
		room:    room,
		options: opts,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := c.dial(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// dial runs one bounded connect attempt on the underlying client.
func (c *Client) dial() error {
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return err
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet, so mark the client connected here as well.
	c.setConnected(true)
	return nil
}

// Reconnect dials the broker again after the connection was lost.
//
// It is a no-op when the client is already connected. The attempt is
// bounded by the connect timeout; ctx is checked before dialling so a
// pending shutdown is never delayed by a reconnect.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil once connected, ErrReconnectFailed (wrapped) otherwise
func (c *Client) Reconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrReconnectFailed, ctx.Err())
	default:
	}

	if err := c.dial(); err != nil {
		return fmt.Errorf("%w: %w", ErrReconnectFailed, err)
	}
	return nil
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.setConnected(true)

	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// publishOnlineStatus publishes the agent's online status to the room status topic.
func (c *Client) publishOnlineStatus() {
	topic := StatusTopic(c.room)
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Waits for pending publish operations
//  3. Disconnects from broker
//
// Returns:
//   - error: If disconnect fails (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := StatusTopic(c.room)
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// ClientID returns the client identifier in use (generated when the
// configuration left it empty).
func (c *Client) ClientID() string {
	return c.cfg.Broker.ClientID
}
