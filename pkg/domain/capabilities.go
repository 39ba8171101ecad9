package domain

import "time"

// Capability interfaces. Entities embed only the implementations they need;
// infrastructure asks for the narrowest capability it acts on.

type Identifiable interface {
	GetID() EntityID
}

type Auditable interface {
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
	Touch(now time.Time)
}

type SoftDeletable interface {
	IsDeleted() bool
	MarkDeleted(now time.Time)
}

// ConcurrencyVersioned is implemented by aggregates whose writes are guarded by
// a compare-and-swap token.
type ConcurrencyVersioned interface {
	GetRowVersion() int64
	SetRowVersion(v int64)
}

// GdprSyncable is implemented by rows that carry residency and sanitization
// metadata and may be propagated to other regions.
type GdprSyncable interface {
	Metadata() *SyncMetadata
}

// Identity is the embeddable Identifiable implementation.
type Identity struct {
	ID EntityID `json:"id"`
}

func (i Identity) GetID() EntityID { return i.ID }

// AuditFields is the embeddable Auditable implementation.
type AuditFields struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a AuditFields) GetCreatedAt() time.Time { return a.CreatedAt }
func (a AuditFields) GetUpdatedAt() time.Time { return a.UpdatedAt }

func (a *AuditFields) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

// SoftDelete is the embeddable SoftDeletable implementation.
type SoftDelete struct {
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (s SoftDelete) IsDeleted() bool { return s.DeletedAt != nil }

func (s *SoftDelete) MarkDeleted(now time.Time) {
	if s.DeletedAt == nil {
		s.DeletedAt = &now
	}
}

// Versioned is the embeddable ConcurrencyVersioned implementation.
type Versioned struct {
	RowVersion int64 `json:"rowVersion"`
}

func (v Versioned) GetRowVersion() int64   { return v.RowVersion }
func (v *Versioned) SetRowVersion(n int64) { v.RowVersion = n }
