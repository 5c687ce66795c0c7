// Package metrics provides Prometheus metrics for the discovery pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Scan pipeline ──────────────────────────────────────────────────────────

// FramesDecoded counts advertisements merged into the registry, by outcome.
var FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "frames_decoded_total",
	Help:      "Advertisement frames decoded and merged.",
}, []string{"outcome"})

// FramesDropped counts advertisements discarded by the pipeline, by reason.
var FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "frames_dropped_total",
	Help:      "Advertisement frames discarded.",
}, []string{"reason"})

// ScanErrors counts errors reported by the scan collaborator.
var ScanErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "scan_errors_total",
	Help:      "Errors reported while scanning.",
})

// PeersTracked is the current registry size.
var PeersTracked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "proximity",
	Name:      "peers_tracked",
	Help:      "Peers currently held in the registry.",
})

// EventsDropped counts peer events not delivered to slow subscribers.
var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "events_dropped_total",
	Help:      "Peer events dropped because a subscriber was full.",
})

// ─── Radio ──────────────────────────────────────────────────────────────────

// BroadcastAttempts counts calls to the transmitter, by result.
var BroadcastAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "broadcast_attempts_total",
	Help:      "Advertising start attempts.",
}, []string{"result"})

// RadioBusy counts coordinator calls dropped because a role change was running.
var RadioBusy = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "proximity",
	Name:      "radio_busy_total",
	Help:      "Start calls dropped while the radio was busy.",
})

// RadioState is the coordinator state as its numeric value.
var RadioState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "proximity",
	Name:      "radio_state",
	Help:      "Coordinator state (0 idle, 1 starting, 2 advertising, 3 stopping, 4 scanning, 5 failed).",
})
