// Package models holds recruiting aggregates written locally in a region.
package models

import (
	"time"

	"regionsync/pkg/domain"
)

// Change-set kinds.
const (
	KindSubmission = "QuestionnaireSubmission"
	KindAnswer     = "QuestionnaireAnswer"
)

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// QuestionnaireSubmission is a candidate's questionnaire. Its row version
// guards the aggregate: every answer append bumps it.
type QuestionnaireSubmission struct {
	domain.Identity
	domain.AuditFields
	domain.Versioned
	CandidateID domain.EntityID  `json:"candidateId"`
	Status      SubmissionStatus `json:"status"`
	Answers     []*Answer        `json:"answers"`
}

func (s *QuestionnaireSubmission) IsOpen() bool {
	return s.Status != SubmissionSubmitted
}

// Answer returns the answer for key, if any.
func (s *QuestionnaireSubmission) Answer(key string) (*Answer, bool) {
	for _, a := range s.Answers {
		if a.QuestionKey == key {
			return a, true
		}
	}
	return nil, false
}

// Answer is append-only; it carries no version of its own.
type Answer struct {
	domain.Identity
	SubmissionID domain.EntityID `json:"submissionId"`
	QuestionKey  string          `json:"questionKey"`
	Value        string          `json:"value"`
	CreatedAt    time.Time       `json:"createdAt"`
}
