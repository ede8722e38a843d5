// Package publisher runs the bounded reading-publish loop over one broker
// connection.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/core/config"
	"github.com/hay-kot/boatpub/internal/core/reading"
)

// Conn is the broker session the loop publishes through. *broker.Connection
// satisfies it.
type Conn interface {
	Publish(topic string, payload []byte) (broker.DeliveryStatus, error)
	Drain(ctx context.Context, timeout time.Duration) broker.AckSummary
	Close()
}

// DialFunc opens the broker session. It is called exactly once per run.
type DialFunc func(ctx context.Context) (Conn, error)

// BrokerDial adapts a broker.Dialer to a DialFunc.
func BrokerDial(d *broker.Dialer, opts broker.Options) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, err := d.Connect(ctx, opts)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Settings control one run of the loop.
type Settings struct {
	Topic      string
	Count      int
	Interval   time.Duration
	AckTimeout time.Duration
}

// SettingsFromConfig builds Settings from the publish section.
func SettingsFromConfig(p config.PublishConfig) Settings {
	return Settings{
		Topic:      p.Topic,
		Count:      p.Count,
		Interval:   p.Interval,
		AckTimeout: p.AckTimeout,
	}
}

// Delivery is the outcome of one publish.
type Delivery struct {
	Seq      int
	Topic    string
	Reading  reading.Reading
	Payload  []byte
	Status   broker.DeliveryStatus
	Err      error
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	Requested   int
	Attempted   int
	Accepted    int
	Rejected    int
	Acks        broker.AckSummary
	State       State
	Interrupted bool
	Deliveries  []Delivery
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Loop publishes Settings.Count readings, one every Settings.Interval.
// A Loop runs once.
type Loop struct {
	settings  Settings
	dial      DialFunc
	log       zerolog.Logger
	clock     Clock
	sampler   *reading.Sampler
	observers Observers
	lifecycle *Lifecycle
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithSampler replaces the default velocity sampler.
func WithSampler(s *reading.Sampler) Option {
	return func(l *Loop) { l.sampler = s }
}

// WithObserver registers observers for connect and delivery events.
func WithObserver(obs ...Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, obs...) }
}

// New creates a Loop.
func New(settings Settings, dial DialFunc, log zerolog.Logger, opts ...Option) *Loop {
	l := &Loop{
		settings:  settings,
		dial:      dial,
		log:       log.With().Str("component", "publisher").Logger(),
		clock:     SystemClock{},
		sampler:   reading.NewSampler(nil),
		lifecycle: NewLifecycle(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.lifecycle.State() }

// Lifecycle exposes the state history of the loop.
func (l *Loop) Lifecycle() *Lifecycle { return l.lifecycle }

// Run connects, publishes every reading and disconnects. The returned error
// is non-nil only when the connection could not be established, in which
// case nothing was published. Failed publishes are recorded in the report
// and do not stop the loop. Cancelling ctx ends the loop early; the
// connection is still closed.
func (l *Loop) Run(ctx context.Context) (Report, error) {
	report := Report{
		Requested: l.settings.Count,
		StartedAt: l.clock.Now(),
	}

	if err := l.lifecycle.To(StateConnecting); err != nil {
		return report, fmt.Errorf("run: %w", err)
	}

	conn, err := l.dial(ctx)
	l.observers.OnConnect(err)
	if err != nil {
		l.log.Error().Err(err).Msg("connect failed")
		_ = l.lifecycle.To(StateStopped)
		return l.finish(report), err
	}
	_ = l.lifecycle.To(StateConnected)
	_ = l.lifecycle.To(StateProcessing)

	report.Deliveries = make([]Delivery, 0, l.settings.Count)

	for seq := 1; seq <= l.settings.Count; seq++ {
		if err := l.clock.Sleep(ctx, l.settings.Interval); err != nil {
			l.log.Warn().Int("seq", seq).Msg("interrupted")
			report.Interrupted = true
			break
		}

		d := l.publish(conn, seq)
		report.Attempted++
		if d.Status == broker.StatusAccepted {
			report.Accepted++
		} else {
			report.Rejected++
		}
		report.Deliveries = append(report.Deliveries, d)
		l.observers.OnDelivery(d)
	}

	report.Acks = conn.Drain(ctx, l.settings.AckTimeout)
	conn.Close()
	_ = l.lifecycle.To(StateStopped)

	return l.finish(report), nil
}

func (l *Loop) publish(conn Conn, seq int) Delivery {
	r := l.sampler.Read(l.clock.Now())
	payload := r.Payload()

	start := time.Now()
	status, err := conn.Publish(l.settings.Topic, payload)
	d := Delivery{
		Seq:      seq,
		Topic:    l.settings.Topic,
		Reading:  r,
		Payload:  payload,
		Status:   status,
		Err:      err,
		Duration: time.Since(start),
	}

	if status != broker.StatusAccepted {
		l.log.Warn().Err(err).Int("seq", seq).Str("topic", l.settings.Topic).Msg("publish rejected")
	} else {
		l.log.Debug().Int("seq", seq).Bytes("payload", payload).Msg("published")
	}
	return d
}

func (l *Loop) finish(report Report) Report {
	report.State = l.lifecycle.State()
	report.FinishedAt = l.clock.Now()
	l.observers.OnFinish(report)
	return report
}
