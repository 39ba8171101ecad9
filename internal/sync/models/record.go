// Package models holds the sync engine's transport, storage and outcome types.
package models

import (
	"maps"

	"regionsync/pkg/domain"
)

// Record is a syncable row as the engine sees it: identity, version token,
// sync metadata and opaque business columns.
type Record struct {
	domain.Identity
	domain.Versioned
	domain.AuditFields
	domain.SyncMetadata

	EntityType string
	Fields     map[string]any
}

// Clone returns a copy that shares no maps or pointers with r.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = maps.Clone(r.Fields)
	c.SyncMetadata = cloneMetadata(r.SyncMetadata)
	return &c
}

func cloneMetadata(m domain.SyncMetadata) domain.SyncMetadata {
	if m.IsSanitized != nil {
		v := *m.IsSanitized
		m.IsSanitized = &v
	}
	if m.SanitizedAt != nil {
		v := *m.SanitizedAt
		m.SanitizedAt = &v
	}
	if m.SanitizationOverrideConsentAt != nil {
		v := *m.SanitizationOverrideConsentAt
		m.SanitizationOverrideConsentAt = &v
	}
	if m.LastSyncedAt != nil {
		v := *m.LastSyncedAt
		m.LastSyncedAt = &v
	}
	return m
}

var (
	_ domain.Identifiable         = (*Record)(nil)
	_ domain.ConcurrencyVersioned = (*Record)(nil)
	_ domain.GdprSyncable         = (*Record)(nil)
	_ domain.Auditable            = (*Record)(nil)
)
