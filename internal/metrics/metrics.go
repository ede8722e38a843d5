// Package metrics exposes publisher counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/publisher"
)

const namespace = "boatpub"

// Metrics holds the collectors for one process on a private registry.
// It implements publisher.Observer.
type Metrics struct {
	registry *prometheus.Registry

	readings        *prometheus.CounterVec
	publishDuration prometheus.Histogram
	connects        *prometheus.CounterVec
	acks            *prometheus.CounterVec
	lastVelocity    prometheus.Gauge
}

var _ publisher.Observer = (*Metrics)(nil)

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings submitted to the broker, by local delivery status.",
		}, []string{"status"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent handing a reading to the MQTT client.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_total",
			Help:      "Broker connect attempts, by result.",
		}, []string{"result"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_total",
			Help:      "Broker acknowledgments for QoS 1 and 2 publishes, by result.",
		}, []string{"result"}),
		lastVelocity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_velocity",
			Help:      "Velocity of the most recently published reading.",
		}),
	}

	m.registry.MustRegister(m.readings, m.publishDuration, m.connects, m.acks, m.lastVelocity)

	// Pre-create label values so they are exported as zero.
	for _, s := range []broker.DeliveryStatus{broker.StatusAccepted, broker.StatusRejected} {
		m.readings.WithLabelValues(s.String())
	}
	return m
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnConnect(err error) {
	result := "ok"
	if err != nil {
		result = string(broker.KindOf(err))
		if result == "" {
			result = string(broker.KindTransport)
		}
	}
	m.connects.WithLabelValues(result).Inc()
}

func (m *Metrics) OnDelivery(d publisher.Delivery) {
	m.readings.WithLabelValues(d.Status.String()).Inc()
	m.publishDuration.Observe(d.Duration.Seconds())
	if d.Status == broker.StatusAccepted {
		m.lastVelocity.Set(d.Reading.Velocity)
	}
}

func (m *Metrics) OnFinish(r publisher.Report) {
	if r.Acks.Total() == 0 {
		return
	}
	m.acks.WithLabelValues("acknowledged").Add(float64(r.Acks.Acknowledged))
	m.acks.WithLabelValues("unacknowledged").Add(float64(r.Acks.Unacknowledged))
}

// Serve runs an HTTP server exposing /metrics on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, m *Metrics, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("metrics endpoint listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
