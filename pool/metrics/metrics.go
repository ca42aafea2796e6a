package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the pool's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vmq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12), // 2ms to ~4s
		},
		[]string{"method", "route"},
	)

	accountsInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Subsystem: "accounts",
			Name:      "inserted_total",
			Help:      "Accounts stored by ingestion.",
		},
	)

	accountsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Subsystem: "accounts",
			Name:      "skipped_total",
			Help:      "Ingested accounts dropped as duplicates.",
		},
	)

	accountsAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Subsystem: "accounts",
			Name:      "allocated_total",
			Help:      "Accounts handed out to consumers.",
		},
	)

	allocateEmpty = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Name:      "allocate_empty_total",
			Help:      "Allocation requests that found no unused account.",
		},
	)

	poolAccounts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vmq",
			Subsystem: "pool",
			Name:      "accounts",
			Help:      "Accounts in the pool by status, as of the last stats read.",
		},
		[]string{"status"},
	)

	archiveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vmq",
			Subsystem: "archive",
			Name:      "runs_total",
			Help:      "Export snapshots written, by outcome.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		accountsInserted,
		accountsSkipped,
		accountsAllocated,
		allocateEmpty,
		poolAccounts,
		archiveRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordAdd(inserted, skipped int) {
	accountsInserted.Add(float64(inserted))
	accountsSkipped.Add(float64(skipped))
}

func RecordAllocation(count int) {
	accountsAllocated.Add(float64(count))
}

func RecordAllocateEmpty() {
	allocateEmpty.Inc()
}

func RecordPool(total, used, unused int) {
	poolAccounts.WithLabelValues("total").Set(float64(total))
	poolAccounts.WithLabelValues("used").Set(float64(used))
	poolAccounts.WithLabelValues("unused").Set(float64(unused))
}

func RecordArchive(success bool) {
	archiveRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}
