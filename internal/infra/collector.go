package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "order_engine"

// PrometheusCollector reads a Metrics snapshot on every scrape.
type PrometheusCollector struct {
	m *Metrics

	submitted   *prometheus.Desc
	confirmed   *prometheus.Desc
	failed      *prometheus.Desc
	retried     *prometheus.Desc
	published   *prometheus.Desc
	dropped     *prometheus.Desc
	avgLatency  *prometheus.Desc
	subscribers *prometheus.Desc
	busy        *prometheus.Desc
}

// NewPrometheusCollector wraps m for registration with a prometheus.Registry.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &PrometheusCollector{
		m:           m,
		submitted:   desc("orders_submitted_total", "Orders accepted by the API."),
		confirmed:   desc("orders_confirmed_total", "Orders that reached confirmed."),
		failed:      desc("orders_failed_total", "Orders that exhausted their attempts."),
		retried:     desc("jobs_retried_total", "Failed attempts scheduled for retry."),
		published:   desc("events_published_total", "Status events published."),
		dropped:     desc("events_dropped_total", "Messages dropped for slow subscribers."),
		avgLatency:  desc("execution_latency_avg_seconds", "Mean processing time of confirmed orders."),
		subscribers: desc("ws_subscribers", "Open websocket subscriptions."),
		busy:        desc("workers_busy", "Workers currently processing a job."),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.confirmed
	ch <- c.failed
	ch <- c.retried
	ch <- c.published
	ch <- c.dropped
	ch <- c.avgLatency
	ch <- c.subscribers
	ch <- c.busy
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.OrdersSubmitted))
	ch <- prometheus.MustNewConstMetric(c.confirmed, prometheus.CounterValue, float64(s.OrdersConfirmed))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.OrdersFailed))
	ch <- prometheus.MustNewConstMetric(c.retried, prometheus.CounterValue, float64(s.JobsRetried))
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(s.EventsPublished))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.EventsDropped))
	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, float64(s.AvgLatencyNs)/1e9)
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(s.ActiveSubscribers))
	ch <- prometheus.MustNewConstMetric(c.busy, prometheus.GaugeValue, float64(s.BusyWorkers))
}
