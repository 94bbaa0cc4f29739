// internal/pkg/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the storefront collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	ordersCreated    prometheus.Counter
	checkoutFailures *prometheus.CounterVec
	cartMutations    *prometheus.CounterVec
	stockRecalcs     prometheus.Counter
}

// NewRecorder registers the storefront metrics on the provided registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}
	r := &Recorder{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created through checkout.",
		}),
		checkoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_failures_total",
			Help: "Checkout attempts that failed, by error code.",
		}, []string{"code"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation.",
		}, []string{"op"}),
		stockRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_recalculations_total",
			Help: "Product stock recomputations from inventory rows.",
		}),
	}
	reg.MustRegister(r.httpRequests, r.httpDuration, r.ordersCreated, r.checkoutFailures, r.cartMutations, r.stockRecalcs)
	return r
}

func (r *Recorder) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if r == nil || r.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *Recorder) IncOrderCreated() {
	if r == nil || r.ordersCreated == nil {
		return
	}
	r.ordersCreated.Inc()
}

func (r *Recorder) IncCheckoutFailure(code string) {
	if r == nil || r.checkoutFailures == nil {
		return
	}
	r.checkoutFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (r *Recorder) IncCartMutation(op string) {
	if r == nil || r.cartMutations == nil {
		return
	}
	r.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (r *Recorder) IncStockRecalculation() {
	if r == nil || r.stockRecalcs == nil {
		return
	}
	r.stockRecalcs.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
