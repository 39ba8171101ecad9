package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one Process call.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeDropped      Outcome = "dropped"
	OutcomeRequeued     Outcome = "requeued"
	OutcomeDeferred     Outcome = "deferred"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// SkippedTarget is a region that did not receive the change and why.
type SkippedTarget struct {
	Region string
	Reason string
}

// Result describes what happened to a message.
type Result struct {
	Outcome Outcome
	// Applied lists regions written by this delivery.
	Applied []string
	// Skipped lists regions excluded by policy or already up to date.
	Skipped []SkippedTarget
	Attempt int
	// Delay is the backoff before the next delivery, for requeued and deferred outcomes.
	Delay  time.Duration
	Reason string
	Err    error
}

// Dead-letter reasons.
const (
	ReasonValidation    = "validation_error"
	ReasonDecode        = "json_parsing_error"
	ReasonConfiguration = "configuration_error"
	ReasonExhausted     = "retries_exhausted"
	ReasonUnique        = "unique_violation"
	ReasonConflict      = "concurrency_conflict"
	ReasonPermanent     = "permanent_failure"
)

// DeadLetter is the operator-facing record of a message that will not be retried.
type DeadLetter struct {
	ID           string    `json:"id"`
	SyncEventID  string    `json:"syncEventId"`
	EntityType   string    `json:"entityType"`
	EntityID     string    `json:"entityId"`
	SourceRegion string    `json:"sourceRegion"`
	IsDeleted    bool      `json:"isDeleted"`
	Attempt      int       `json:"attempt"`
	Reason       string    `json:"reason"`
	LastError    string    `json:"lastError"`
	Payload      []byte    `json:"payload,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewDeadLetter builds a dead letter for msg.
func NewDeadLetter(msg Message, reason string, cause error, now time.Time) DeadLetter {
	dl := DeadLetter{
		ID:           uuid.NewString(),
		SyncEventID:  string(msg.SyncEventID),
		EntityType:   msg.EntityType,
		EntityID:     string(msg.EntityID),
		SourceRegion: msg.SourceRegion,
		IsDeleted:    msg.IsDeleted,
		Attempt:      msg.Attempt(),
		Reason:       reason,
		CreatedAt:    now,
	}
	if cause != nil {
		dl.LastError = cause.Error()
	}
	if payload, err := msg.Encode(); err == nil {
		dl.Payload = payload
	}
	return dl
}
