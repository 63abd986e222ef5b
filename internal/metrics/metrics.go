// Package metrics exports the dimmer state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"ledimmer/internal/brightness"
)

var _ prometheus.Collector = &Metrics{}

type Metrics struct {
	level  prometheus.Gauge
	keys   *prometheus.CounterVec
	pushes prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledimmer_brightness_level",
			Help: "Duty cycle last pushed to the LED, in percent.",
		}),
		keys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledimmer_key_events_total",
			Help: "Key presses processed, by key.",
		}, []string{"key"}),
		pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledimmer_duty_cycle_pushes_total",
			Help: "Duty cycle writes to the PWM output.",
		}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.level.Describe(ch)
	m.keys.Describe(ch)
	m.pushes.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.level.Collect(ch)
	m.keys.Collect(ch)
	m.pushes.Collect(ch)
}

func (m *Metrics) KeyPressed(k brightness.Key) {
	m.keys.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) DutyPushed(level brightness.Level) {
	m.level.Set(float64(level))
	m.pushes.Inc()
}

// Serve exposes the metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(m); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.WithField("addr", addr).Info("metrics listener started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
