package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal_gateway"

// Prometheus holds the gateway's collectors. A nil *Prometheus records nothing.
type Prometheus struct {
	registry        *prometheus.Registry
	signals         *prometheus.CounterVec
	errors          *prometheus.CounterVec
	publishes       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheus registers the collectors on a fresh registry, together with the Go and
// process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Webhook signals by origin path and result.",
		}, []string{"path", "result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Rejected webhooks by error kind.",
		}, []string{"kind"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Broker publish attempts by result.",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	p.registry.MustRegister(
		p.signals, p.errors, p.publishes, p.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// ObserveRequest records one HTTP request.
func (p *Prometheus) ObserveRequest(route, method string, status int, d time.Duration) {
	if p == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	p.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *Prometheus) signal(path, result string) {
	if p == nil {
		return
	}
	p.signals.WithLabelValues(path, result).Inc()
}

func (p *Prometheus) rejection(kind string) {
	if p == nil {
		return
	}
	p.errors.WithLabelValues(kind).Inc()
}

func (p *Prometheus) publish(result string) {
	if p == nil {
		return
	}
	p.publishes.WithLabelValues(result).Inc()
}
