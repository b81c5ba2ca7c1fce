// Package ratelimit implements the shared backoff gate used when the people
// service asks clients to slow down. Any worker that receives a rate-limited
// response extends the pause window; every worker consults the gate before
// claiming new work.
package ratelimit

import (
	"time"
)

// Redis keys for backoff state storage.
const (
	// RedisKeyResumeAt holds the resume timestamp (unix milliseconds) shared by
	// every enricher process pointed at the same Redis.
	RedisKeyResumeAt = "enrich:backoff:resume_at"
)

// BackoffState represents the pause window currently in force.
type BackoffState struct {
	// ResumeAt is the instant after which requests may flow again.
	// A zero value means no pause has ever been requested.
	ResumeAt time.Time `json:"resume_at"`

	// LastUpdate is when ResumeAt was last moved.
	LastUpdate time.Time `json:"last_update"`
}

// IsPaused returns true while the resume time lies in the future.
func (s BackoffState) IsPaused() bool {
	return time.Now().Before(s.ResumeAt)
}

// TimeUntilResume returns the duration until requests may resume.
// Returns 0 if the pause has already elapsed.
func (s BackoffState) TimeUntilResume() time.Duration {
	duration := time.Until(s.ResumeAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// Extend moves ResumeAt forward to until. The window never shrinks: an
// earlier until is ignored and Extend reports false.
func (s *BackoffState) Extend(until time.Time) bool {
	if !until.After(s.ResumeAt) {
		return false
	}
	s.ResumeAt = until
	s.LastUpdate = time.Now()
	return true
}
