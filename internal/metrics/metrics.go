// Package metrics provides Prometheus metrics for modwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "modwatch"
)

// Tracker metrics
var (
	// PassesTotal counts completed reconciliation passes.
	PassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "passes_total",
			Help:      "Total number of completed reconciliation passes",
		},
	)

	// PassesSkipped counts ticks skipped because a pass was still running.
	PassesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "passes_skipped_total",
			Help:      "Ticks skipped because the previous pass was still running",
		},
	)

	// PassDuration tracks reconciliation pass latency.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// ProjectsChecked counts projects examined across all passes.
	ProjectsChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "projects_checked_total",
			Help:      "Total projects examined for updates",
		},
	)

	// ProjectsChanged counts projects with a new upstream version.
	ProjectsChanged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "projects_changed_total",
			Help:      "Total projects observed with a new upstream version",
		},
	)

	// ProjectsPruned counts projects removed because no channel subscribes
	// to them or the catalog no longer knows them.
	ProjectsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "projects_pruned_total",
			Help:      "Total projects removed during reconciliation",
		},
	)

	// FetchErrors counts catalog fetch failures by kind.
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "fetch_errors_total",
			Help:      "Catalog fetch failures by error kind",
		},
		[]string{"kind"},
	)
)

// Notification metrics
var (
	// NotificationsSent counts update messages delivered to channels.
	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "sent_total",
			Help:      "Total update notifications delivered",
		},
	)

	// NotificationErrors counts failed channel sends.
	NotificationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "errors_total",
			Help:      "Total failed notification sends",
		},
	)
)

// Command metrics
var (
	// CommandsTotal counts handled slash commands by subcommand.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "handled_total",
			Help:      "Total slash commands handled",
		},
		[]string{"command"},
	)
)
