package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Collector owns a private registry with every metric the service exports.
type Collector struct {
	reg *prometheus.Registry

	PositionsAccepted prometheus.Counter
	PositionsRejected *prometheus.CounterVec // reason: malformed|not_provisioned|store
	PositionsSwept    prometheus.Counter
	LiveBuses         prometheus.Gauge
	StatusFailures    prometheus.Counter

	RoutingRequests  *prometheus.CounterVec // provider, result: ok|error
	RoutingDuration  prometheus.Histogram
	RoutingCacheHits prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	StreamClients prometheus.Gauge
	StreamDropped prometheus.Counter

	ArchiveRuns *prometheus.CounterVec // result: ok|error|empty
	ArchiveRows prometheus.Counter

	HTTPDuration *prometheus.HistogramVec // method, route, status
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PositionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_positions_accepted_total",
			Help: "Total position fixes stored.",
		}),
		PositionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_positions_rejected_total",
			Help: "Total position fixes rejected, by reason.",
		}, []string{"reason"}),
		PositionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_positions_swept_total",
			Help: "Total positions marked inactive by the retention sweep.",
		}),
		LiveBuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_live_buses",
			Help: "Buses that reported within the retention window at the last listing.",
		}),
		StatusFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_status_failures_total",
			Help: "Buses omitted from a listing because their status could not be derived.",
		}),
		RoutingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_routing_requests_total",
			Help: "Routing provider calls by provider and result.",
		}, []string{"provider", "result"}),
		RoutingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustracker_routing_duration_seconds",
			Help:    "Duration of routing provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RoutingCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_routing_cache_hits_total",
			Help: "Routing results served from cache.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_stream_clients",
			Help: "Connected websocket clients.",
		}),
		StreamDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_stream_dropped_total",
			Help: "Events dropped because a websocket client was too slow.",
		}),
		ArchiveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_archive_runs_total",
			Help: "Archive runs by result.",
		}, []string{"result"}),
		ArchiveRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_archive_rows_total",
			Help: "Positions written to the archive.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bustracker_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.PositionsAccepted, c.PositionsRejected, c.PositionsSwept, c.LiveBuses, c.StatusFailures,
		c.RoutingRequests, c.RoutingDuration, c.RoutingCacheHits,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.StreamClients, c.StreamDropped,
		c.ArchiveRuns, c.ArchiveRows,
		c.HTTPDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("metrics listening")
	return srv
}

// routing

func (c *Collector) RoutingObserve(provider string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.RoutingRequests.WithLabelValues(provider, result).Inc()
	c.RoutingDuration.Observe(d.Seconds())
}

func (c *Collector) RoutingCacheHit() { c.RoutingCacheHits.Inc() }

// publisher

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

// stream

func (c *Collector) StreamClientsSet(n int) { c.StreamClients.Set(float64(n)) }
func (c *Collector) StreamDroppedInc()      { c.StreamDropped.Inc() }

// archive

func (c *Collector) ArchiveObserve(rows int, err error) {
	switch {
	case err != nil:
		c.ArchiveRuns.WithLabelValues("error").Inc()
	case rows == 0:
		c.ArchiveRuns.WithLabelValues("empty").Inc()
	default:
		c.ArchiveRuns.WithLabelValues("ok").Inc()
		c.ArchiveRows.Add(float64(rows))
	}
}

// handler

func (c *Collector) PositionAccepted()             { c.PositionsAccepted.Inc() }
func (c *Collector) PositionRejected(reason string) { c.PositionsRejected.WithLabelValues(reason).Inc() }
func (c *Collector) Swept(n int64)                  { c.PositionsSwept.Add(float64(n)) }
func (c *Collector) LiveBusesSet(n int)             { c.LiveBuses.Set(float64(n)) }
func (c *Collector) StatusFailed()                  { c.StatusFailures.Inc() }

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
