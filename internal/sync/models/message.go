package models

import (
	"encoding/json"
	"strings"
	"time"

	"regionsync/pkg/domain"
	dErrors "regionsync/pkg/domain-errors"
)

// Message is one change-propagation unit on the transport.
type Message struct {
	SyncEventID  domain.SyncEventID `json:"syncEventId"`
	EntityType   string             `json:"entityType"`
	EntityID     domain.EntityID    `json:"entityId"`
	SourceRegion string             `json:"sourceRegion"`
	IsDeleted    bool               `json:"isDeleted"`
	TableName    string             `json:"tableName,omitempty"`
	OccurredAt   time.Time          `json:"occurredAt,omitzero"`
	AttemptCount int                `json:"attemptCount,omitempty"`
	NotBefore    time.Time          `json:"notBefore,omitzero"`
}

// Attempt is the 1-based delivery attempt. Producers leave AttemptCount unset
// on first delivery.
func (m Message) Attempt() int {
	if m.AttemptCount < 1 {
		return 1
	}
	return m.AttemptCount
}

// LaneKey identifies the sequencing lane. Messages with equal keys must be
// processed in delivery order.
func (m Message) LaneKey() string {
	return LaneKey(m.EntityType, m.EntityID)
}

// LaneKey builds the lane key for an entity.
func LaneKey(entityType string, id domain.EntityID) string {
	return entityType + "/" + string(id)
}

// Retry returns the message for its next delivery attempt.
func (m Message) Retry(notBefore time.Time) Message {
	next := m
	next.AttemptCount = m.Attempt() + 1
	next.NotBefore = notBefore
	return next
}

// Defer returns the message rescheduled without consuming an attempt.
func (m Message) Defer(notBefore time.Time) Message {
	next := m
	next.AttemptCount = m.Attempt()
	next.NotBefore = notBefore
	return next
}

// Validate checks the fields every message must carry.
func (m Message) Validate() error {
	if _, err := domain.ParseSyncEventID(string(m.SyncEventID)); err != nil {
		return err
	}
	if _, err := domain.ParseEntityID(string(m.EntityID)); err != nil {
		return err
	}
	if strings.TrimSpace(m.EntityType) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entity type is required")
	}
	if strings.TrimSpace(m.SourceRegion) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source region is required")
	}
	if m.AttemptCount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "attempt count cannot be negative")
	}
	return nil
}

// DecodeMessage parses a transport payload. Malformed JSON is CodeInvalidInput.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode sync message")
	}
	return m, nil
}

// Encode renders the transport payload.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
