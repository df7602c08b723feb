// Package metrics defines the Prometheus collectors exported by the
// home/teleport engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set groups the engine's collectors. A nil *Set is a valid no-op sink so
// components can run unmetered in tests.
type Set struct {
	teleports     *prometheus.CounterVec
	shareRequests *prometheus.CounterVec
	cachedPlayers prometheus.Gauge
	saveFailures  prometheus.Counter
	exports       *prometheus.CounterVec
}

// Share request outcome labels.
const (
	ShareCreated  = "created"
	ShareConflict = "conflict"
	ShareAccepted = "accepted"
	ShareDeclined = "declined"
	ShareExpired  = "expired"
)

// New constructs and registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		teleports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homewarp_teleports_total",
			Help: "Teleport attempts by result.",
		}, []string{"result"}),
		shareRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homewarp_share_requests_total",
			Help: "Home share negotiations by outcome.",
		}, []string{"outcome"}),
		cachedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homewarp_cached_players",
			Help: "Player collections currently held in the cache.",
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homewarp_save_failures_total",
			Help: "Best-effort persistence writes that failed.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homewarp_exports_total",
			Help: "Snapshot exports by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(s.teleports, s.shareRequests, s.cachedPlayers, s.saveFailures, s.exports)
	return s
}

// TeleportResult counts a teleport attempt outcome.
func (s *Set) TeleportResult(result string) {
	if s == nil {
		return
	}
	s.teleports.WithLabelValues(result).Inc()
}

// ShareOutcome counts a share negotiation outcome.
func (s *Set) ShareOutcome(outcome string) {
	if s == nil {
		return
	}
	s.shareRequests.WithLabelValues(outcome).Inc()
}

// SetCachedPlayers records the current cache population.
func (s *Set) SetCachedPlayers(n int) {
	if s == nil {
		return
	}
	s.cachedPlayers.Set(float64(n))
}

// SaveFailure counts a failed persistence write.
func (s *Set) SaveFailure() {
	if s == nil {
		return
	}
	s.saveFailures.Inc()
}

// ExportStatus counts a snapshot export terminal status.
func (s *Set) ExportStatus(status string) {
	if s == nil {
		return
	}
	s.exports.WithLabelValues(status).Inc()
}
