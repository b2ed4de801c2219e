package entity

import "time"

// AuditEntry is a write-once record of one actor action. Entries are only
// ever appended; per-target ordering is by ID.
type AuditEntry struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	PriorPhase string    `json:"prior_phase,omitempty"`
	NewPhase   string    `json:"new_phase,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
