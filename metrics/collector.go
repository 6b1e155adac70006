// Package metrics provides a prometheus.Collector that records Pool
// activity — pushes, self-pops, steals, steal misses, scan restarts, and
// per-worker queue depth — for any github.com/go-foundations/wsqueue.Pool
// wired up through its PoolConfig.Recorder.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements wsqueue.PoolRecorder and exposes the recorded
// activity as a prometheus.Collector, the same hand-rolled
// Describe/Collect shape used throughout the pack's infra repos rather
// than a promauto-generated one, since a Pool's worker count (and so its
// label cardinality) is only known at registration time.
type Collector struct {
	namespace string
	subsystem string

	pushed       *prometheus.CounterVec
	poppedSelf   *prometheus.CounterVec
	poppedStolen *prometheus.CounterVec
	stealMiss    *prometheus.CounterVec
	scanRestart  *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
}

// NewCollector creates a Collector. namespace/subsystem follow the usual
// prometheus convention (e.g. namespace="myservice", subsystem="wspool")
// and may both be empty.
func NewCollector(namespace, subsystem string) *Collector {
	c := &Collector{namespace: namespace, subsystem: subsystem}

	c.pushed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "pushed_total", Help: "Items pushed onto a worker's own deque.",
	}, []string{"thread"})

	c.poppedSelf = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "popped_self_total", Help: "Items popped from a worker's own deque bottom.",
	}, []string{"thread"})

	c.poppedStolen = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "popped_stolen_total", Help: "Items a worker stole from another worker's deque.",
	}, []string{"thread", "victim"})

	c.stealMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "steal_miss_total", Help: "Steal scans that found the rest of the pool empty.",
	}, []string{"thread"})

	c.scanRestart = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "scan_restart_total", Help: "Witnessed steal scans restarted due to concealed owner activity or membership change.",
	}, []string{"thread"})

	c.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem,
		Name: "queue_depth", Help: "Last-observed item count on a worker's own deque.",
	}, []string{"thread"})

	return c
}

func label(thread int32) string {
	return strconv.FormatInt(int64(thread), 10)
}

// Pushed implements wsqueue.PoolRecorder.
func (c *Collector) Pushed(thread int32) {
	c.pushed.WithLabelValues(label(thread)).Inc()
}

// PoppedSelf implements wsqueue.PoolRecorder.
func (c *Collector) PoppedSelf(thread int32) {
	c.poppedSelf.WithLabelValues(label(thread)).Inc()
}

// PoppedStolen implements wsqueue.PoolRecorder.
func (c *Collector) PoppedStolen(thread, victim int32) {
	c.poppedStolen.WithLabelValues(label(thread), label(victim)).Inc()
}

// StealMiss implements wsqueue.PoolRecorder.
func (c *Collector) StealMiss(thread, victim int32) {
	c.stealMiss.WithLabelValues(label(thread)).Inc()
}

// ScanRestarted implements wsqueue.PoolRecorder.
func (c *Collector) ScanRestarted(thread int32) {
	c.scanRestart.WithLabelValues(label(thread)).Inc()
}

// QueueDepth implements wsqueue.PoolRecorder.
func (c *Collector) QueueDepth(thread int32, depth int64) {
	c.queueDepth.WithLabelValues(label(thread)).Set(float64(depth))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.pushed.Describe(ch)
	c.poppedSelf.Describe(ch)
	c.poppedStolen.Describe(ch)
	c.stealMiss.Describe(ch)
	c.scanRestart.Describe(ch)
	c.queueDepth.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.pushed.Collect(ch)
	c.poppedSelf.Collect(ch)
	c.poppedStolen.Collect(ch)
	c.stealMiss.Collect(ch)
	c.scanRestart.Collect(ch)
	c.queueDepth.Collect(ch)
}
