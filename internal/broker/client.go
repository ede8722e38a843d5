// Package broker wraps the paho MQTT client with a synchronous, typed connect
// and a publish call that reports a local delivery status.
package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/hay-kot/boatpub/internal/core/config"
)

// disconnectQuiesce is how long Disconnect lets in-flight work finish, in ms.
const disconnectQuiesce = 250

// Client is the subset of mqtt.Client used by Connection.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// ClientFactory creates a Client from paho options.
type ClientFactory func(opts *mqtt.ClientOptions) Client

// NewPahoClient is the default ClientFactory.
func NewPahoClient(opts *mqtt.ClientOptions) Client {
	return mqtt.NewClient(opts)
}

// Options are the connection parameters for one broker session.
type Options struct {
	Host           string
	Port           int
	ClientID       string
	Username       string
	Password       string
	TLS            *tls.Config // nil for plaintext
	ConnectTimeout time.Duration
	KeepAlive      time.Duration

	QoS      byte
	Retained bool
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tlsCfg, err := cfg.Broker.TLS.Build(cfg.Broker.Host)
	if err != nil {
		return Options{}, fmt.Errorf("build tls config: %w", err)
	}

	return Options{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.EffectivePort(),
		ClientID:       cfg.Broker.ClientID,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		TLS:            tlsCfg,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		KeepAlive:      cfg.Broker.KeepAlive,
		QoS:            byte(cfg.Publish.QoS),
		Retained:       cfg.Publish.Retained,
	}, nil
}

// Address returns host:port.
func (o Options) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// BrokerURL returns the paho broker URL, ssl:// when TLS is configured.
func (o Options) BrokerURL() string {
	scheme := "tcp"
	if o.TLS != nil {
		scheme = "ssl"
	}
	return scheme + "://" + o.Address()
}

func (o Options) pahoOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL()).
		SetClientID(o.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(o.ConnectTimeout).
		SetKeepAlive(o.KeepAlive).
		SetOrderMatters(false)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	if o.TLS != nil {
		opts.SetTLSConfig(o.TLS)
	}
	return opts
}

// Dialer establishes broker connections.
type Dialer struct {
	log       zerolog.Logger
	newClient ClientFactory
}

// NewDialer returns a Dialer backed by the paho client.
func NewDialer(log zerolog.Logger) *Dialer {
	return &Dialer{
		log:       log.With().Str("component", "broker").Logger(),
		newClient: NewPahoClient,
	}
}

// WithClientFactory replaces the client constructor. Used by tests.
func (d *Dialer) WithClientFactory(fn ClientFactory) *Dialer {
	d.newClient = fn
	return d
}

// Connect opens a session and waits for the broker's CONNACK. On failure the
// returned error is a *ConnectError.
func (d *Dialer) Connect(ctx context.Context, o Options) (*Connection, error) {
	conn := &Connection{
		opts: o,
		log:  d.log.With().Str("broker", o.Address()).Str("client_id", o.ClientID).Logger(),
	}
	if o.QoS > 0 {
		conn.tracker = NewTracker()
	}

	popts := o.pahoOptions()
	popts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		conn.markLost(err)
	})
	conn.client = d.newClient(popts)

	conn.log.Debug().Str("url", o.BrokerURL()).Msg("connecting")

	tok := conn.client.Connect()

	wait := o.ConnectTimeout + time.Second
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-tok.Done():
	case <-ctx.Done():
		conn.client.Disconnect(0)
		return nil, &ConnectError{Kind: KindTransport, Broker: o.Address(), Err: ctx.Err()}
	case <-timer.C:
		conn.client.Disconnect(0)
		return nil, &ConnectError{Kind: KindTransport, Broker: o.Address(), Err: fmt.Errorf("no CONNACK within %s", wait)}
	}

	var code byte
	if ct, ok := tok.(interface{ ReturnCode() byte }); ok {
		code = ct.ReturnCode()
	}

	if err := tok.Error(); err != nil || isRefusal(code) {
		cerr := classify(o.Address(), code, err)
		conn.log.Debug().Err(cerr).Str("kind", string(cerr.Kind)).Msg("connect failed")
		return nil, cerr
	}

	conn.log.Info().Bool("tls", o.TLS != nil).Msg("connected")
	return conn, nil
}

// Connection is an established broker session. It is not reconnected when
// the network drops; publishes after that are rejected.
type Connection struct {
	client  Client
	opts    Options
	log     zerolog.Logger
	tracker *Tracker

	mu     sync.Mutex
	seq    uint64
	closed bool
	lost   error
}

func (c *Connection) markLost(err error) {
	c.mu.Lock()
	c.lost = err
	c.mu.Unlock()
	c.log.Warn().Err(err).Msg("connection lost")
}

// Publish hands payload to the client for delivery on topic. The returned
// error explains a StatusRejected result.
func (c *Connection) Publish(topic string, payload []byte) (DeliveryStatus, error) {
	if topic == "" {
		return StatusRejected, ErrEmptyTopic
	}

	c.mu.Lock()
	closed, lost := c.closed, c.lost
	c.seq++
	id := c.seq
	c.mu.Unlock()

	switch {
	case closed:
		return StatusRejected, ErrClosed
	case lost != nil:
		return StatusRejected, fmt.Errorf("%w: %v", ErrNotConnected, lost)
	case !c.client.IsConnectionOpen():
		return StatusRejected, ErrNotConnected
	}

	tok := c.client.Publish(topic, c.opts.QoS, c.opts.Retained, payload)

	// A token that is already complete with an error was refused by the
	// client without reaching the network.
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return StatusRejected, fmt.Errorf("publish: %w", err)
		}
	default:
	}

	if c.tracker != nil {
		c.tracker.Track(id, tok)
	}
	return StatusAccepted, nil
}

// Drain waits up to timeout for outstanding acknowledgments. It returns a
// zero summary when QoS is 0.
func (c *Connection) Drain(ctx context.Context, timeout time.Duration) AckSummary {
	if c.tracker == nil {
		return AckSummary{}
	}
	summary := c.tracker.Wait(ctx, timeout)
	if summary.Unacknowledged > 0 {
		c.log.Warn().Int("unacknowledged", summary.Unacknowledged).Msg("publishes left without acknowledgment")
	}
	return summary
}

// Close disconnects from the broker. It is safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.client.Disconnect(disconnectQuiesce)
	c.log.Info().Msg("disconnected")
}

// Options returns the options the connection was opened with.
func (c *Connection) Options() Options { return c.opts }
