// Package metrics exposes the connection table's counters as Prometheus
// metrics. Grounded on runZeroInc-sockstats/pkg/exporter.TCPInfoCollector:
// a custom prometheus.Collector that walks live state under a mutex and
// emits it on Collect, rather than a registry of pre-built gauges updated
// eagerly on every event.
//
// The spec's Non-goals exclude output sinks and scripting hosts (§1), not
// observability: this ambient layer is carried regardless, the same way
// the teacher carries structured logging regardless of Non-goals (SPEC_FULL
// §10).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is the set of counters TableCollector reads on each Collect
// call. Callers (engine.Table) update a Snapshot under their own lock and
// hand TableCollector a read func, mirroring how TCPInfoCollector.Collect
// re-reads fd state from its tracked connections map rather than caching
// stale metrics between scrapes.
type Snapshot struct {
	ActiveTCBs     float64
	Created        float64
	Destroyed      float64
	RSTReceived    float64
	Timeouts       float64
	BannersFlushed float64
	Retransmits    float64
	StaleACKsDropped float64
}

// TableCollector implements prometheus.Collector over a Source's current
// Snapshot.
type TableCollector struct {
	mu     sync.Mutex
	source func() Snapshot

	active         *prometheus.Desc
	created        *prometheus.Desc
	destroyed      *prometheus.Desc
	rst            *prometheus.Desc
	timeouts       *prometheus.Desc
	bannersFlushed *prometheus.Desc
	retransmits    *prometheus.Desc
	staleACKs      *prometheus.Desc
}

// NewTableCollector creates a collector that calls source to obtain a fresh
// Snapshot on every Collect.
func NewTableCollector(namespace string, source func() Snapshot) *TableCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &TableCollector{
		source:         source,
		active:         desc("active_tcbs", "Number of TCBs currently tracked by the connection table."),
		created:        desc("tcbs_created_total", "Total TCBs created."),
		destroyed:      desc("tcbs_destroyed_total", "Total TCBs destroyed."),
		rst:            desc("rst_received_total", "Total RST segments received."),
		timeouts:       desc("connection_timeouts_total", "Total connections torn down by connection_timeout."),
		bannersFlushed: desc("banners_flushed_total", "Total banner flushes reported to the output sink."),
		retransmits:    desc("retransmits_total", "Total segment retransmissions."),
		staleACKs:      desc("stale_acks_dropped_total", "Total ACKs dropped by the past/future-ack filter."),
	}
}

func (c *TableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.created
	ch <- c.destroyed
	ch <- c.rst
	ch <- c.timeouts
	ch <- c.bannersFlushed
	ch <- c.retransmits
	ch <- c.staleACKs
}

func (c *TableCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snap := c.source()
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, snap.ActiveTCBs)
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, snap.Created)
	ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, snap.Destroyed)
	ch <- prometheus.MustNewConstMetric(c.rst, prometheus.CounterValue, snap.RSTReceived)
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, snap.Timeouts)
	ch <- prometheus.MustNewConstMetric(c.bannersFlushed, prometheus.CounterValue, snap.BannersFlushed)
	ch <- prometheus.MustNewConstMetric(c.retransmits, prometheus.CounterValue, snap.Retransmits)
	ch <- prometheus.MustNewConstMetric(c.staleACKs, prometheus.CounterValue, snap.StaleACKsDropped)
}
