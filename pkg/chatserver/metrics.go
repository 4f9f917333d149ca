package chatserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatTurnsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pnibot_chat_turns_total",
		Help: "Number of chat turns processed, by outcome.",
	}, []string{"outcome"})

	chatEvidenceMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pnibot_chat_evidence_total",
		Help: "Number of chat turns, by the evidence source used.",
	}, []string{"kind"})
)
