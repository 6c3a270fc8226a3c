// Package metrics exposes the helper decisions as prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "sqriak"

// Line results.
const (
	LineInvalid  = "invalid"
	LineRedirect = "redirect"
	LinePass     = "pass"
)

// Lookup outcomes.
const (
	LookupFound       = "found"
	LookupAbsent      = "absent"
	LookupError       = "error"
	LookupBreakerOpen = "breaker_open"
)

type Metrics struct {
	linesM    *prometheus.CounterVec
	lookupsM  *prometheus.CounterVec
	durationM prometheus.Histogram
	reloadsM  *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		linesM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "lines_total",
			Help:      "Total number of request lines answered, by result.",
		}, []string{"result"}),
		lookupsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "lookups_total",
			Help:      "Total number of Riak key lookups, by outcome.",
		}, []string{"outcome"}),
		durationM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration in seconds of Riak key lookups.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}),
		reloadsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "config_reloads_total",
			Help:      "Total number of configuration reloads, by result.",
		}, []string{"result"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.linesM)
	m.registry.MustRegister(m.lookupsM)
	m.registry.MustRegister(m.durationM)
	m.registry.MustRegister(m.reloadsM)
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.registry.MustRegister(collectors.NewGoCollector())
	return m
}

// All methods are nil safe so callers can run without metrics.

func (m *Metrics) IncLine(result string) {
	if m == nil {
		return
	}
	m.linesM.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLookup(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.lookupsM.WithLabelValues(outcome).Inc()
	m.durationM.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncReload(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.reloadsM.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
