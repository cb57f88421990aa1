package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "buffetpos"

// Recorder is what the service reports sale outcomes to.
type Recorder interface {
	CheckoutCompleted(paymentMethod string, total float64)
	CheckoutFailed(reason string)
	RefundCompleted()
	ReceiptFailed()
}

type Noop struct{}

func (Noop) CheckoutCompleted(string, float64) {}
func (Noop) CheckoutFailed(string)             {}
func (Noop) RefundCompleted()                  {}
func (Noop) ReceiptFailed()                    {}

type Prometheus struct {
	registry        *prometheus.Registry
	checkouts       *prometheus.CounterVec
	checkoutRevenue *prometheus.CounterVec
	checkoutErrors  *prometheus.CounterVec
	refunds         prometheus.Counter
	receiptErrors   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Completed checkouts by payment method.",
		}, []string{"payment_method"}),
		checkoutRevenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_revenue_total",
			Help:      "Sum of completed sale totals by payment method.",
		}, []string{"payment_method"}),
		checkoutErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_failures_total",
			Help:      "Rejected or failed checkouts by reason.",
		}, []string{"reason"}),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refunded sales.",
		}),
		receiptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_print_failures_total",
			Help:      "Receipts that could not be printed after a committed sale.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	p.registry.MustRegister(
		p.checkouts, p.checkoutRevenue, p.checkoutErrors, p.refunds, p.receiptErrors,
		p.httpRequests, p.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) CheckoutCompleted(paymentMethod string, total float64) {
	p.checkouts.WithLabelValues(paymentMethod).Inc()
	p.checkoutRevenue.WithLabelValues(paymentMethod).Add(total)
}

func (p *Prometheus) CheckoutFailed(reason string) {
	p.checkoutErrors.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RefundCompleted() {
	p.refunds.Inc()
}

func (p *Prometheus) ReceiptFailed() {
	p.receiptErrors.Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Instrument counts and times every request passing through next.
func (p *Prometheus) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(p.httpDuration,
		promhttp.InstrumentHandlerCounter(p.httpRequests, next))
}
