// Package metrics exports Prometheus metrics for safops, fed from the event bus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arthur-debert/safops/pkg/safops/core"
)

// Collector holds all safops metrics
type Collector struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Grant metrics
	GrantRequests *prometheus.CounterVec
	GrantOutcomes *prometheus.CounterVec

	// Index metrics
	Rescans        prometheus.Counter
	RescannedFiles prometheus.Counter
	RescanDuration prometheus.Histogram

	subscriptions []core.SubscriptionID
}

// NewCollector registers the safops metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safops_operations_total",
				Help: "Total number of file operations",
			},
			[]string{"op", "kind", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "safops_operation_duration_seconds",
				Help:    "File operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		GrantRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safops_grant_requests_total",
				Help: "Total number of grant requests shown to the user",
			},
			[]string{"kind"},
		),
		GrantOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safops_grant_outcomes_total",
				Help: "Total number of resolved grant requests",
			},
			[]string{"kind", "outcome"},
		),
		Rescans: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "safops_index_rescans_total",
				Help: "Total number of media index rescans",
			},
		),
		RescannedFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "safops_index_rescanned_files_total",
				Help: "Total number of files passed to the media index scanner",
			},
		),
		RescanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "safops_index_rescan_duration_seconds",
				Help:    "Media index rescan duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Subscribe starts recording events published on bus.
func (c *Collector) Subscribe(bus core.EventBus) {
	c.subscriptions = append(c.subscriptions,
		bus.Subscribe(core.EventOperationCompleted, c.onOperation),
		bus.Subscribe(core.EventGrantRequested, c.onGrantRequested),
		bus.Subscribe(core.EventGrantResolved, c.onGrantResolved),
		bus.Subscribe(core.EventIndexRescanned, c.onRescan),
	)
}

// Unsubscribe stops recording events from bus.
func (c *Collector) Unsubscribe(bus core.EventBus) {
	for _, id := range c.subscriptions {
		bus.Unsubscribe(id)
	}
	c.subscriptions = nil
}

func (c *Collector) onOperation(_ context.Context, ev core.Event) {
	op, ok := ev.Payload.(core.OperationEvent)
	if !ok {
		return
	}
	status := "success"
	if !op.Success {
		status = "error"
	}
	c.OperationsTotal.WithLabelValues(op.Op, op.Kind.String(), status).Inc()
	c.OperationDuration.WithLabelValues(op.Op).Observe(op.Duration.Seconds())
}

func (c *Collector) onGrantRequested(_ context.Context, ev core.Event) {
	if grant, ok := ev.Payload.(core.GrantEvent); ok {
		c.GrantRequests.WithLabelValues(grant.Kind.String()).Inc()
	}
}

func (c *Collector) onGrantResolved(_ context.Context, ev core.Event) {
	if grant, ok := ev.Payload.(core.GrantEvent); ok {
		c.GrantOutcomes.WithLabelValues(grant.Kind.String(), grant.Outcome).Inc()
	}
}

func (c *Collector) onRescan(_ context.Context, ev core.Event) {
	if rescan, ok := ev.Payload.(core.RescanEvent); ok {
		c.Rescans.Inc()
		c.RescannedFiles.Add(float64(rescan.Files))
		c.RescanDuration.Observe(rescan.Duration.Seconds())
	}
}
