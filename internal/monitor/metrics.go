package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics storefront metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// business
	interactionTotal     *prometheus.CounterVec
	cartAddTotal         *prometheus.CounterVec
	orderTransitionTotal *prometheus.CounterVec
	pendingOrders        prometheus.Gauge
	activeDialogues      prometheus.Gauge
	waitlistJoinTotal    *prometheus.CounterVec
	restockNotifyTotal   *prometheus.CounterVec
	saleRecordTotal      *prometheus.CounterVec
	notificationFailure  *prometheus.CounterVec
	reconcileTotal       *prometheus.CounterVec

	// catalog cache
	catalogLookupTotal *prometheus.CounterVec

	// outbound gateway
	gatewayRequestTotal    *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec
	gatewayBreakerState    prometheus.Gauge

	// http
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every metric on reg
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.interactionTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interaction_total",
		Help:      "Inbound interactions by action kind and result code",
	}, []string{"kind", "result"})

	m.cartAddTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_add_total",
		Help:      "Add to cart attempts",
	}, []string{"result"})

	m.orderTransitionTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transition_total",
		Help:      "Order lifecycle transitions by resulting status",
	}, []string{"status"})

	m.pendingOrders = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_orders",
		Help:      "Orders awaiting an admin decision",
	})

	m.activeDialogues = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_dialogues",
		Help:      "Partial delivery dialogues in progress",
	})

	m.waitlistJoinTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "waitlist_join_total",
		Help:      "Waitlist join attempts",
	}, []string{"result"})

	m.restockNotifyTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restock_notify_total",
		Help:      "Restock notifications sent to waiting users",
	}, []string{"result"})

	m.saleRecordTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sale_record_total",
		Help:      "Sale record writes by status and result",
	}, []string{"status", "result"})

	m.notificationFailure = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failure_total",
		Help:      "Outbound notifications that failed and were skipped",
	}, []string{"kind"})

	m.reconcileTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_alert_total",
		Help:      "Ledger reconciliation alerts",
	}, []string{"stage"})

	m.catalogLookupTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_lookup_total",
		Help:      "Catalog lookups by cache outcome",
	}, []string{"outcome"})

	m.gatewayRequestTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_request_total",
		Help:      "Outbound gateway calls",
	}, []string{"op", "result"})

	m.gatewayRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Outbound gateway latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	m.gatewayBreakerState = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_breaker_state",
		Help:      "Gateway circuit breaker state: 0 closed, 1 half-open, 2 open",
	})

	m.httpRequestTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_request_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	return m
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordInteraction(kind, result string) {
	if m == nil {
		return
	}
	m.interactionTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordCartAdd(result string) {
	if m == nil {
		return
	}
	m.cartAddTotal.WithLabelValues(result).Inc()
}

// RecordOrderTransition counts an order entering status
func (m *Metrics) RecordOrderTransition(status string) {
	if m == nil {
		return
	}
	m.orderTransitionTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetPendingOrders(n int) {
	if m == nil {
		return
	}
	m.pendingOrders.Set(float64(n))
}

func (m *Metrics) SetActiveDialogues(n int) {
	if m == nil {
		return
	}
	m.activeDialogues.Set(float64(n))
}

func (m *Metrics) RecordWaitlistJoin(result string) {
	if m == nil {
		return
	}
	m.waitlistJoinTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRestockNotify(result string) {
	if m == nil {
		return
	}
	m.restockNotifyTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSaleRecord(status, result string) {
	if m == nil {
		return
	}
	m.saleRecordTotal.WithLabelValues(status, result).Inc()
}

func (m *Metrics) RecordNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notificationFailure.WithLabelValues(kind).Inc()
}

// RecordReconcile counts alerts by stage: published, publish_failed, delivered, delivery_failed
func (m *Metrics) RecordReconcile(stage string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordCatalogLookup(outcome string) {
	if m == nil {
		return
	}
	m.catalogLookupTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGatewayRequest(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequestTotal.WithLabelValues(op, result).Inc()
	m.gatewayRequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.gatewayBreakerState.Set(float64(state))
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
