package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "regionsync/pkg/domain-errors"
)

// maxIDLength bounds identifiers accepted from the transport. Sync event ids are
// stored in a 128 character column on every syncable table.
const maxIDLength = 128

// EntityID identifies a row. The same value is used in every region so that
// foreign keys resolve without translation; it is never rewritten.
type EntityID string

// SyncEventID is the idempotency key of one change-propagation unit.
type SyncEventID string

// ParseEntityID validates an entity id received at a trust boundary.
func ParseEntityID(s string) (EntityID, error) {
	if err := validateID("entity id", s); err != nil {
		return "", err
	}
	return EntityID(s), nil
}

// ParseSyncEventID validates a sync event id received at a trust boundary.
func ParseSyncEventID(s string) (SyncEventID, error) {
	if err := validateID("sync event id", s); err != nil {
		return "", err
	}
	return SyncEventID(s), nil
}

// NewSyncEventID returns a fresh random event id.
func NewSyncEventID() SyncEventID {
	return SyncEventID(uuid.NewString())
}

func (id EntityID) String() string    { return string(id) }
func (id SyncEventID) String() string { return string(id) }

func validateID(kind, s string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidInput, kind+" is not valid UTF-8")
	}
	for _, r := range s {
		if !allowedIDRune(r) {
			return dErrors.New(dErrors.CodeInvalidInput, kind+" contains invalid characters")
		}
	}
	return nil
}

// allowedIDRune admits letters, digits and the separators used by uuids and
// composite keys.
func allowedIDRune(r rune) bool {
	switch r {
	case '-', '_', '.', ':':
		return true
	}
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
