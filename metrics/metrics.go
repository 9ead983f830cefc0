// Package metrics exposes engine activity as Prometheus metrics.
//
//	m := metrics.New(prometheus.NewRegistry())
//	defer m.Bind(bus, doc.Root())()
//	engine := navigation.New(doc, tr, navigation.WithBus(bus), navigation.WithReporter(m))
//	http.Handle("/metrics", m.Handler())
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/html"

	"github.com/hazyhaar/reflinks/events"
	"github.com/hazyhaar/reflinks/navigation"
)

// Metrics holds the reflinks collectors registered on one registry.
type Metrics struct {
	events    *prometheus.CounterVec
	visits    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	permanent prometheus.Gauge
	gatherer  prometheus.Gatherer
}

// New creates the collectors and registers them on reg. When reg is also a
// Gatherer (a *prometheus.Registry), Handler serves it; otherwise Handler
// serves the default gatherer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reflinks_events_total",
				Help: "Lifecycle events dispatched, by event name.",
			},
			[]string{"event"},
		),
		visits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reflinks_visits_total",
				Help: "Finished visits, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reflinks_visit_duration_seconds",
				Help:    "Duration of visits from before-visit to history push.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		permanent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reflinks_permanent_elements",
			Help: "Permanent elements held in the cache.",
		}),
		gatherer: prometheus.DefaultGatherer,
	}
	reg.MustRegister(m.events, m.visits, m.duration, m.permanent)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Bind counts every lifecycle event fired on target.
func (m *Metrics) Bind(bus *events.Bus, target *html.Node) (unbind func()) {
	names := []string{
		events.BeforeVisit,
		events.BeforeCache,
		events.BeforeRender,
		events.Render,
		events.PermanentEvicted,
	}
	offs := make([]func(), 0, len(names))
	for _, name := range names {
		counter := m.events.WithLabelValues(name)
		offs = append(offs, bus.On(target, name, func(*events.Event) error {
			counter.Inc()
			return nil
		}))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// ObserveVisit records one finished visit.
func (m *Metrics) ObserveVisit(outcome string, d time.Duration) {
	m.visits.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetPermanent sets the cached permanent element count.
func (m *Metrics) SetPermanent(n int) { m.permanent.Set(float64(n)) }

// ReportVisit implements navigation.Reporter.
func (m *Metrics) ReportVisit(_ context.Context, r navigation.Report) {
	m.ObserveVisit(string(r.Outcome), r.Duration)
	m.SetPermanent(r.Permanent)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
