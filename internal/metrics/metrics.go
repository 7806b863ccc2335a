// Package metrics holds the prometheus collectors for the chamber logger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Ingest metrics
	IngestMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamber_ingest_messages_total",
			Help: "MQTT reading messages received, by decode result",
		},
		[]string{"result"},
	)

	// State machine metrics
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamber_transitions_total",
			Help: "Activity state transitions, by new state",
		},
		[]string{"state"},
	)

	ChamberOn = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chamber_on",
			Help: "1 while the chamber is classified ON, 0 while OFF",
		},
	)

	// Storage metrics
	SamplesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chamber_samples_written_total",
			Help: "Sampled readings persisted to the log",
		},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamber_store_errors_total",
			Help: "Durable store failures, by operation",
		},
		[]string{"op"},
	)

	// Archive metrics
	Archives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamber_archives_total",
			Help: "Session archive attempts, by result",
		},
		[]string{"result"},
	)

	// Keep-alive metrics
	KeepAlivePings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chamber_keepalive_pings_total",
			Help: "Keep-alive pings, by result",
		},
		[]string{"result"},
	)

	KeepAliveArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chamber_keepalive_armed",
			Help: "1 while the keep-alive loop is running",
		},
	)
)

func init() {
	prometheus.MustRegister(
		IngestMessages,
		Transitions,
		ChamberOn,
		SamplesWritten,
		StoreErrors,
		Archives,
		KeepAlivePings,
		KeepAliveArmed,
	)
}
