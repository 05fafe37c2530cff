// Package metrics holds the Prometheus collectors of the scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scheduler"

// Registry is the registry every scheduler collector is registered with.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Rebuilds counts completed rebuilds by selected playlist and trigger.
	Rebuilds = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebuilds_total",
		Help:      "Completed playlist rebuilds.",
	}, []string{"kind", "trigger"})

	// PlaylistItems is the size of the last built playlist.
	PlaylistItems = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playlist_items",
		Help:      "Number of items in one pass of the selected playlist.",
	}, []string{"kind"})

	// ItemsPlayed counts items sent to the player.
	ItemsPlayed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_played_total",
		Help:      "Items loaded into the player.",
	})

	// FileErrors counts playlist items skipped because the file vanished.
	FileErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "file_errors_total",
		Help:      "Playlist items whose file no longer exists.",
	})

	// Injections counts periodic items queued for playback.
	Injections = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "injections_total",
		Help:      "Periodic items queued for playback.",
	})

	// Preemptions counts waits cut short by a new rebuild.
	Preemptions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "preemptions_total",
		Help:      "Item waits interrupted by a rebuild result.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
