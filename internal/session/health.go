// Package session derives runtime session health from heartbeat recency
// and surfaces orphaned queue entries.
//
// Health is computed, never stored: there is no crash event in the
// vocabulary, so the absence of heartbeats is the only failure signal.
// Thresholds are configuration, not protocol - two observers with
// different thresholds may legitimately classify the same session
// differently.
package session

import (
	"time"

	"github.com/quillnb/quill/internal/state"
)

// Health classifies a session by heartbeat recency.
type Health string

const (
	// HealthConnecting: active but no heartbeat observed yet.
	HealthConnecting Health = "connecting"
	// HealthHealthy: heartbeat within the healthy threshold.
	HealthHealthy Health = "healthy"
	// HealthWarning: heartbeat lagging but below the stale threshold.
	HealthWarning Health = "warning"
	// HealthStale: no heartbeat past the stale threshold. Likely dead,
	// not proven dead - heartbeat delivery itself can lag.
	HealthStale Health = "stale"
	// HealthUnknown: inactive and never heartbeated.
	HealthUnknown Health = "unknown"
)

// Thresholds configure health classification.
type Thresholds struct {
	// HealthyWithin is the maximum heartbeat age still considered healthy.
	HealthyWithin time.Duration
	// StaleAfter is the heartbeat age past which a session is stale.
	// Ages between the two thresholds classify as warning.
	StaleAfter time.Duration
}

// DefaultThresholds match a heartbeat interval of a few seconds: healthy
// for 30s, warning up to 2m, stale beyond that.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyWithin: 30 * time.Second,
		StaleAfter:    2 * time.Minute,
	}
}

// Classify derives the health of a session at nowMillis.
//
// Inactive sessions never become healthy again: they classify as unknown
// if they never heartbeated, stale otherwise. An active session walks
// healthy → warning → stale as its last heartbeat ages, with no event
// required for the transitions.
func Classify(sess state.RuntimeSession, nowMillis int64, t Thresholds) Health {
	if !sess.Active {
		if sess.LastHeartbeat == 0 {
			return HealthUnknown
		}
		return HealthStale
	}

	if sess.LastHeartbeat == 0 {
		return HealthConnecting
	}

	age := time.Duration(nowMillis-sess.LastHeartbeat) * time.Millisecond
	switch {
	case age <= t.HealthyWithin:
		return HealthHealthy
	case age <= t.StaleAfter:
		return HealthWarning
	default:
		return HealthStale
	}
}

// LikelyDead reports whether the health means the session should not be
// counted on to make progress. Consumers use this to decide a
// replacement session is safe to start; it is not proof of death.
func (h Health) LikelyDead() bool {
	return h == HealthStale || h == HealthUnknown
}
