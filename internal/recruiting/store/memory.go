package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"regionsync/internal/recruiting/models"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
)

type submissionRow struct {
	sub     models.QuestionnaireSubmission
	answers map[string]models.Answer
}

// Memory is an in-process Backend. A change set is checked in full before
// any row is written.
type Memory struct {
	mu   sync.Mutex
	rows map[domain.EntityID]*submissionRow
	// beforePersist runs under the lock at the start of each Persist.
	beforePersist func(m *Memory)
}

func NewMemory() *Memory {
	return &Memory{rows: map[domain.EntityID]*submissionRow{}}
}

func (m *Memory) Load(_ context.Context, id domain.EntityID) (*models.QuestionnaireSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, sentinel.ErrNotFound)
	}
	sub := row.sub
	sub.Answers = make([]*models.Answer, 0, len(row.answers))
	for _, a := range row.answers {
		sub.Answers = append(sub.Answers, &a)
	}
	sort.Slice(sub.Answers, func(i, j int) bool {
		if sub.Answers[i].CreatedAt.Equal(sub.Answers[j].CreatedAt) {
			return sub.Answers[i].ID < sub.Answers[j].ID
		}
		return sub.Answers[i].CreatedAt.Before(sub.Answers[j].CreatedAt)
	})
	return &sub, nil
}

func (m *Memory) Persist(_ context.Context, cs *conflict.ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforePersist != nil {
		m.beforePersist(m)
	}

	pending := cs.Pending()
	if err := m.check(pending); err != nil {
		return err
	}
	for _, e := range pending {
		switch ent := e.Entity.(type) {
		case *models.QuestionnaireSubmission:
			m.applySubmission(e, ent)
		case *models.Answer:
			if e.State == conflict.Added {
				m.rows[ent.SubmissionID].answers[ent.QuestionKey] = *ent
			} else if e.State == conflict.Deleted {
				delete(m.rows[ent.SubmissionID].answers, ent.QuestionKey)
			}
		}
	}
	return nil
}

func (m *Memory) check(pending []*conflict.Entry) error {
	added := map[domain.EntityID]bool{}
	for _, e := range pending {
		switch ent := e.Entity.(type) {
		case *models.QuestionnaireSubmission:
			row, exists := m.rows[ent.ID]
			switch e.State {
			case conflict.Added:
				if exists {
					return fmt.Errorf("insert submission %s: %w", ent.ID, sentinel.ErrDuplicate)
				}
				added[ent.ID] = true
			case conflict.Modified, conflict.Deleted:
				if !exists || row.sub.RowVersion != e.OriginalVersion {
					return fmt.Errorf("write submission %s: %w", ent.ID, sentinel.ErrConflict)
				}
			}
		case *models.Answer:
			if e.State != conflict.Added {
				continue
			}
			row, exists := m.rows[ent.SubmissionID]
			if !exists && !added[ent.SubmissionID] {
				return fmt.Errorf("insert answer %s: %w", ent.ID, sentinel.ErrDependency)
			}
			if exists {
				if _, dup := row.answers[ent.QuestionKey]; dup {
					return fmt.Errorf("insert answer %s: %w", ent.ID, sentinel.ErrDuplicate)
				}
			}
		default:
			return fmt.Errorf("unsupported entity %T", e.Entity)
		}
	}
	return nil
}

func (m *Memory) applySubmission(e *conflict.Entry, sub *models.QuestionnaireSubmission) {
	switch e.State {
	case conflict.Added:
		sub.SetRowVersion(1)
		stored := *sub
		stored.Answers = nil
		m.rows[sub.ID] = &submissionRow{sub: stored, answers: map[string]models.Answer{}}
	case conflict.Modified:
		row := m.rows[sub.ID]
		sub.SetRowVersion(row.sub.RowVersion + 1)
		stored := *sub
		stored.Answers = nil
		row.sub = stored
	case conflict.Deleted:
		delete(m.rows, sub.ID)
	}
}

func (m *Memory) CurrentVersion(_ context.Context, e *conflict.Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := e.Entity.(*models.QuestionnaireSubmission)
	if !ok {
		return 0, fmt.Errorf("unversioned entity %T", e.Entity)
	}
	row, exists := m.rows[sub.ID]
	if !exists {
		return 0, fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	return row.sub.RowVersion, nil
}
