package conflict

import "regionsync/pkg/domain"

// EntryState is the pending operation recorded for a tracked entity.
type EntryState int

const (
	Unchanged EntryState = iota
	Added
	Modified
	Deleted
	Detached
)

func (s EntryState) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Detached:
		return "detached"
	default:
		return "unchanged"
	}
}

// Entry is one tracked entity. OriginalVersion is the row version the change
// was computed against; persisters use it as the compare-and-swap token.
type Entry struct {
	Kind            string
	Entity          domain.Identifiable
	State           EntryState
	OriginalVersion int64
}

// Versioned reports whether the entity carries a row version token.
func (e *Entry) Versioned() bool {
	_, ok := e.Entity.(domain.ConcurrencyVersioned)
	return ok
}

// ChangeSet is the unit of work handed to a Persister. Entries are kept in
// tracking order, so parents tracked before children are written first.
type ChangeSet struct {
	entries []*Entry
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{}
}

// Add tracks a new entity.
func (cs *ChangeSet) Add(kind string, e domain.Identifiable) *Entry {
	return cs.track(kind, e, Added)
}

// Modify tracks an update. The original version is taken from the entity.
func (cs *ChangeSet) Modify(kind string, e domain.Identifiable) *Entry {
	return cs.track(kind, e, Modified)
}

// Remove tracks a delete. The original version is taken from the entity.
func (cs *ChangeSet) Remove(kind string, e domain.Identifiable) *Entry {
	return cs.track(kind, e, Deleted)
}

func (cs *ChangeSet) track(kind string, e domain.Identifiable, state EntryState) *Entry {
	entry := &Entry{Kind: kind, Entity: e, State: state}
	if v, ok := e.(domain.ConcurrencyVersioned); ok {
		entry.OriginalVersion = v.GetRowVersion()
	}
	cs.entries = append(cs.entries, entry)
	return entry
}

// Entries returns every tracked entry, including detached ones.
func (cs *ChangeSet) Entries() []*Entry {
	return cs.entries
}

// Pending returns the entries a persister must write.
func (cs *ChangeSet) Pending() []*Entry {
	out := make([]*Entry, 0, len(cs.entries))
	for _, e := range cs.entries {
		if e.State == Added || e.State == Modified || e.State == Deleted {
			out = append(out, e)
		}
	}
	return out
}

// HasPending reports whether anything is left to write.
func (cs *ChangeSet) HasPending() bool {
	for _, e := range cs.entries {
		if e.State == Added || e.State == Modified || e.State == Deleted {
			return true
		}
	}
	return false
}

// acceptChanges is called after a successful persist.
func (cs *ChangeSet) acceptChanges() {
	for _, e := range cs.entries {
		switch e.State {
		case Added, Modified:
			e.State = Unchanged
			if v, ok := e.Entity.(domain.ConcurrencyVersioned); ok {
				e.OriginalVersion = v.GetRowVersion()
			}
		case Deleted:
			e.State = Detached
		}
	}
}
