// Package metrics exposes Prometheus instrumentation and the metrics HTTP
// server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RegistrationsTotal counts successful name registrations.
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namechain_registrations_total",
		Help: "Number of successful name registrations.",
	})

	// RenewalsTotal counts successful name renewals.
	RenewalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namechain_renewals_total",
		Help: "Number of successful name renewals.",
	})

	// BridgeMessagesSent counts outbound bridge messages by chain and type.
	BridgeMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namechain_bridge_messages_sent_total",
		Help: "Number of bridge messages sent, by origin chain and message type.",
	}, []string{"chain", "type"})

	// BridgeMessagesReceived counts inbound bridge messages by chain and type.
	BridgeMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namechain_bridge_messages_received_total",
		Help: "Number of bridge messages received, by destination chain and message type.",
	}, []string{"chain", "type"})

	// MigrationsTotal counts legacy name migrations by path.
	MigrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namechain_migrations_total",
		Help: "Number of legacy names migrated, by controller path.",
	}, []string{"path"})
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
