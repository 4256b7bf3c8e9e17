package metrics

import (
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listing metrics
var (
	ListingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filetree_listings_total",
			Help: "Total directory listings performed",
		},
	)

	ListingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filetree_listing_duration_seconds",
			Help:    "Time to list a directory including its single-child chain",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)
)

// Tree metrics
var (
	ExpansionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filetree_expansions_total",
			Help: "Expansion completions by outcome",
		},
		[]string{"result"}, // applied | discarded | coalesced
	)

	CollapsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filetree_collapses_total",
			Help: "Total node collapses",
		},
	)

	RestoresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filetree_restores_total",
			Help: "Total snapshot restores started",
		},
	)

	RootsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filetree_roots_opened_total",
			Help: "Total root folders opened",
		},
	)

	TreeOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filetree_tree_open",
			Help: "1 while a tree is open",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ListingsTotal,
		ListingDuration,
		ExpansionsTotal,
		CollapsesTotal,
		RestoresTotal,
		RootsOpened,
		TreeOpen,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts a standalone HTTP server serving /metrics on the given address.
func StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics: server on %s stopped: %v", addr, err)
		}
	}()
	return srv
}
