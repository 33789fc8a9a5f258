// Package metrics holds the Prometheus collectors for the integration layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SMTPDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smtp_deliveries_total",
		Help: "SMTP delivery attempts by result.",
	}, []string{"result"}) // result: sent|auth_failed|failed

	OTPEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_events_total",
		Help: "OTP lifecycle events.",
	}, []string{"event"}) // event: issued|delivery_failed|verified|invalid|expired

	OrderBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_batches_total",
		Help: "Order batches by payment method and result.",
	}, []string{"method", "result"})

	PaymentInitiations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment initiations by method and result.",
	}, []string{"method", "result"})

	GatewayDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Register adds every collector to reg and returns the /metrics handler for it.
func Register(reg *prometheus.Registry) (http.Handler, error) {
	for _, c := range []prometheus.Collector{SMTPDeliveries, OTPEvents, OrderBatches, PaymentInitiations, GatewayDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
