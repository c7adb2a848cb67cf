package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trivia_provider_requests_total",
		Help: "Requests issued to the trivia provider, by outcome.",
	}, []string{"outcome"})

	providerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trivia_provider_request_seconds",
		Help:    "Latency of trivia provider requests.",
		Buckets: prometheus.DefBuckets,
	})
)

// MonitorHTTPClient wraps the client's transport with request logging and
// provider metrics.
func MonitorHTTPClient(c *http.Client) {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = monitoredTransport{base: base}
}

type monitoredTransport struct {
	base http.RoundTripper
}

func (t monitoredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	slog.InfoContext(ctx, fmt.Sprintf("provider: starting %s %s", req.Method, req.URL.Redacted()))
	resp, err := t.base.RoundTrip(req)
	providerLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		providerRequests.WithLabelValues("transport_error").Inc()
		slog.InfoContext(ctx, fmt.Sprintf("provider: finished %s %s", req.Method, req.URL.Redacted()), "error", err)
		return nil, err
	}

	providerRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	slog.InfoContext(ctx, fmt.Sprintf("provider: finished %s %s: %s", req.Method, req.URL.Redacted(), resp.Status))
	return resp, nil
}
