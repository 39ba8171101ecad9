package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"regionsync/internal/recruiting/models"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/platform/sqlerr"
	"regionsync/pkg/platform/tx"
)

// Postgres stores submissions in questionnaire_submissions and
// questionnaire_answers.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Load(ctx context.Context, id domain.EntityID) (*models.QuestionnaireSubmission, error) {
	exec := tx.Exec(ctx, p.db)
	sub := &models.QuestionnaireSubmission{}
	var status string
	err := exec.QueryRowContext(ctx, `
		SELECT id, candidate_id, status, row_version, created_at, updated_at
		FROM questionnaire_submissions WHERE id = $1`, string(id),
	).Scan(&sub.ID, &sub.CandidateID, &status, &sub.RowVersion, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, sqlerr.Translate("load submission", err)
	}
	sub.Status = models.SubmissionStatus(status)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, submission_id, question_key, value, created_at
		FROM questionnaire_answers WHERE submission_id = $1
		ORDER BY created_at, id`, string(id))
	if err != nil {
		return nil, sqlerr.Translate("load answers", err)
	}
	defer rows.Close()
	for rows.Next() {
		a := &models.Answer{}
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionKey, &a.Value, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		sub.Answers = append(sub.Answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlerr.Translate("load answers", err)
	}
	return sub, nil
}

// Persist writes the change set in one transaction. New row versions are set
// on the entities only after commit.
func (p *Postgres) Persist(ctx context.Context, cs *conflict.ChangeSet) error {
	var commits []func()
	err := tx.Run(ctx, p.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, p.db)
		for _, e := range cs.Pending() {
			var (
				commit func()
				err    error
			)
			switch ent := e.Entity.(type) {
			case *models.QuestionnaireSubmission:
				commit, err = p.writeSubmission(ctx, exec, e, ent)
			case *models.Answer:
				err = p.writeAnswer(ctx, exec, e, ent)
			default:
				err = fmt.Errorf("unsupported entity %T", e.Entity)
			}
			if err != nil {
				return err
			}
			if commit != nil {
				commits = append(commits, commit)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, c := range commits {
		c()
	}
	return nil
}

func (p *Postgres) writeSubmission(ctx context.Context, exec tx.Executor, e *conflict.Entry, sub *models.QuestionnaireSubmission) (func(), error) {
	switch e.State {
	case conflict.Added:
		_, err := exec.ExecContext(ctx, `
			INSERT INTO questionnaire_submissions (id, candidate_id, status, row_version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5)`,
			string(sub.ID), string(sub.CandidateID), string(sub.Status), sub.CreatedAt, sub.UpdatedAt)
		if err != nil {
			return nil, sqlerr.Translate("insert submission", err)
		}
		return func() { sub.SetRowVersion(1) }, nil
	case conflict.Modified:
		next := e.OriginalVersion + 1
		res, err := exec.ExecContext(ctx, `
			UPDATE questionnaire_submissions
			SET status = $1, updated_at = $2, row_version = $3
			WHERE id = $4 AND row_version = $5`,
			string(sub.Status), sub.UpdatedAt, next, string(sub.ID), e.OriginalVersion)
		if err := expectOne(res, err, "update submission", sub.ID); err != nil {
			return nil, err
		}
		return func() { sub.SetRowVersion(next) }, nil
	case conflict.Deleted:
		res, err := exec.ExecContext(ctx,
			`DELETE FROM questionnaire_submissions WHERE id = $1 AND row_version = $2`,
			string(sub.ID), e.OriginalVersion)
		return nil, expectOne(res, err, "delete submission", sub.ID)
	}
	return nil, nil
}

func (p *Postgres) writeAnswer(ctx context.Context, exec tx.Executor, e *conflict.Entry, a *models.Answer) error {
	switch e.State {
	case conflict.Added:
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO questionnaire_answers (id, submission_id, question_key, value, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			string(a.ID), string(a.SubmissionID), a.QuestionKey, a.Value, createdAt)
		return sqlerr.Translate("insert answer", err)
	case conflict.Deleted:
		_, err := exec.ExecContext(ctx, `DELETE FROM questionnaire_answers WHERE id = $1`, string(a.ID))
		return sqlerr.Translate("delete answer", err)
	}
	return nil
}

// expectOne turns a zero-row versioned write into a concurrency conflict.
func expectOne(res sql.Result, err error, op string, id domain.EntityID) error {
	if err != nil {
		return sqlerr.Translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, sentinel.ErrConflict)
	}
	return nil
}

func (p *Postgres) CurrentVersion(ctx context.Context, e *conflict.Entry) (int64, error) {
	sub, ok := e.Entity.(*models.QuestionnaireSubmission)
	if !ok {
		return 0, fmt.Errorf("unversioned entity %T", e.Entity)
	}
	var v int64
	err := tx.Exec(ctx, p.db).QueryRowContext(ctx,
		`SELECT row_version FROM questionnaire_submissions WHERE id = $1`, string(sub.ID)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	if err != nil {
		return 0, sqlerr.Translate("current version", err)
	}
	return v, nil
}
