package domain

import "time"

// SyncMetadata is the residency and propagation state carried by every
// syncable row. LastSyncedAt and LastSyncEventID are written only by the
// sync apply step.
type SyncMetadata struct {
	DataOriginRegion              string     `json:"dataOriginRegion"`
	DataResidency                 Residency  `json:"dataResidency"`
	IsSanitized                   *bool      `json:"isSanitized,omitempty"`
	SanitizedAt                   *time.Time `json:"sanitizedAt,omitempty"`
	SanitizationOverrideConsentAt *time.Time `json:"sanitizationOverrideConsentAt,omitempty"`
	CountryExposureSetID          string     `json:"countryExposureSetId,omitempty"`
	LastSyncedAt                  *time.Time `json:"lastSyncedAt,omitempty"`
	LastSyncEventID               string     `json:"lastSyncEventId,omitempty"`
}

// Metadata makes any struct embedding SyncMetadata a GdprSyncable.
func (m *SyncMetadata) Metadata() *SyncMetadata { return m }

// Sanitized reports whether the row has been scrubbed for global sync.
func (m *SyncMetadata) Sanitized() bool {
	return m.IsSanitized != nil && *m.IsSanitized
}

// HasOverrideConsent reports whether the data subject consented to unsanitized
// global propagation.
func (m *SyncMetadata) HasOverrideConsent() bool {
	return m.SanitizationOverrideConsentAt != nil
}

// AlreadyApplied reports whether the event, or something newer than it, has
// already been applied to this row.
func (m *SyncMetadata) AlreadyApplied(eventID SyncEventID, occurredAt time.Time) bool {
	if m.LastSyncEventID != "" && m.LastSyncEventID == string(eventID) {
		return true
	}
	if m.LastSyncedAt != nil && !occurredAt.IsZero() && m.LastSyncedAt.After(occurredAt) {
		return true
	}
	return false
}

// MarkSynced records an applied event. The timestamp never moves backwards.
func (m *SyncMetadata) MarkSynced(eventID SyncEventID, at time.Time) {
	m.LastSyncEventID = string(eventID)
	if m.LastSyncedAt == nil || at.After(*m.LastSyncedAt) {
		t := at
		m.LastSyncedAt = &t
	}
}

// MarkSanitized flags the row as scrubbed.
func (m *SyncMetadata) MarkSanitized(at time.Time) {
	v := true
	t := at
	m.IsSanitized = &v
	m.SanitizedAt = &t
}
