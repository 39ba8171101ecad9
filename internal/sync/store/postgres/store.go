// Package postgres is the region store over the replicated entity tables.
// Every table carries the sync metadata columns, a row_version token and a
// fields JSONB document; declared foreign-key columns are stored natively so
// the database enforces them.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"regionsync/internal/sync/models"
	"regionsync/internal/sync/policy"
	"regionsync/pkg/domain"
	"regionsync/pkg/platform/conflict"
	"regionsync/pkg/platform/sentinel"
	"regionsync/pkg/platform/sqlerr"
	"regionsync/pkg/platform/tx"
)

// Tables resolves an entity type to its descriptor (for the table name).
type Tables interface {
	Get(name string) (policy.Descriptor, error)
}

// DefaultColumns are the native foreign-key columns created by the bundled
// migrations, keyed by entity type.
func DefaultColumns() map[string][]string {
	return map[string][]string{
		"JobPost":                {"country_id"},
		"JobApplication":         {"candidate_id", "job_post_id"},
		"Interview":              {"job_application_id"},
		"Feedback":               {"interview_id"},
		"InterviewConfiguration": {"job_post_id"},
		"JobPostStep":            {"job_post_id"},
		"JobApplicationStep":     {"job_application_id"},
	}
}

// Store is one region's database.
type Store struct {
	region  string
	db      *sql.DB
	tables  Tables
	columns map[string][]string
	clock   func() time.Time
}

type Option func(*Store)

// WithColumns replaces the native column layout.
func WithColumns(columns map[string][]string) Option {
	return func(s *Store) {
		s.columns = columns
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(region string, db *sql.DB, tables Tables, opts ...Option) *Store {
	s := &Store{
		region:  region,
		db:      db,
		tables:  tables,
		columns: DefaultColumns(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Region() string { return s.region }

var metadataColumns = []string{
	"id", "row_version", "created_at", "updated_at",
	"data_origin_region", "data_residency", "is_sanitized", "sanitized_at",
	"sanitization_override_consent_at", "country_exposure_set_id",
	"last_synced_at", "last_sync_event_id", "fields",
}

func (s *Store) table(entityType string) (string, error) {
	desc, err := s.tables.Get(entityType)
	if err != nil {
		return "", err
	}
	return pq.QuoteIdentifier(desc.Table()), nil
}

func (s *Store) Fetch(ctx context.Context, entityType string, id domain.EntityID) (*models.Record, error) {
	table, err := s.table(entityType)
	if err != nil {
		return nil, err
	}
	native := s.columns[entityType]
	cols := append(append([]string{}, metadataColumns...), native...)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, joinQuoted(cols), table)

	rec := &models.Record{EntityType: entityType}
	var (
		fieldsJSON   []byte
		isSanitized  sql.NullBool
		exposureSet  sql.NullString
		lastEventID  sql.NullString
		residency    string
		nativeValues = make([]sql.NullString, len(native))
	)
	dest := []any{
		&rec.ID, &rec.RowVersion, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.DataOriginRegion, &residency, &isSanitized, &rec.SanitizedAt,
		&rec.SanitizationOverrideConsentAt, &exposureSet,
		&rec.LastSyncedAt, &lastEventID, &fieldsJSON,
	}
	for i := range nativeValues {
		dest = append(dest, &nativeValues[i])
	}
	if err := tx.Exec(ctx, s.db).QueryRowContext(ctx, query, string(id)).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", entityType, id, sentinel.ErrNotFound)
		}
		return nil, sqlerr.Translate("fetch "+entityType, err)
	}

	rec.DataResidency = domain.Residency(residency)
	if isSanitized.Valid {
		v := isSanitized.Bool
		rec.IsSanitized = &v
	}
	rec.CountryExposureSetID = exposureSet.String
	rec.LastSyncEventID = lastEventID.String
	rec.Fields = map[string]any{}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s %s: %w", entityType, id, err)
		}
	}
	for i, col := range native {
		if nativeValues[i].Valid {
			rec.Fields[col] = nativeValues[i].String
		}
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, entityType string, id domain.EntityID) error {
	table, err := s.table(entityType)
	if err != nil {
		return err
	}
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), string(id))
	if err != nil {
		return sqlerr.Translate("delete "+entityType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", entityType, id, sentinel.ErrNotFound)
	}
	return nil
}

// Persist writes the change set in one transaction. A missing or stale
// version token fails the whole set with sentinel.ErrConflict.
func (s *Store) Persist(ctx context.Context, cs *conflict.ChangeSet) error {
	pending := cs.Pending()
	versions := make(map[*conflict.Entry]int64, len(pending))

	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, e := range pending {
			rec, ok := e.Entity.(*models.Record)
			if !ok {
				return fmt.Errorf("postgres store: unsupported entity %T", e.Entity)
			}
			var (
				next int64
				err  error
			)
			switch e.State {
			case conflict.Added:
				next, err = s.insert(ctx, e.Kind, rec)
			case conflict.Modified:
				next, err = s.update(ctx, e.Kind, rec, e.OriginalVersion)
			case conflict.Deleted:
				err = s.deleteVersioned(ctx, e.Kind, rec.ID, e.OriginalVersion)
			}
			if err != nil {
				return err
			}
			versions[e] = next
		}
		return nil
	})
	if err != nil {
		return err
	}
	for e, v := range versions {
		if v > 0 {
			e.Entity.(*models.Record).RowVersion = v
		}
	}
	return nil
}

func (s *Store) CurrentVersion(ctx context.Context, e *conflict.Entry) (int64, error) {
	table, err := s.table(e.Kind)
	if err != nil {
		return 0, err
	}
	var v int64
	err = tx.Exec(ctx, s.db).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT row_version FROM %s WHERE id = $1`, table), string(e.Entity.GetID()),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s %s: %w", e.Kind, e.Entity.GetID(), sentinel.ErrNotFound)
	}
	if err != nil {
		return 0, sqlerr.Translate("read row version", err)
	}
	return v, nil
}

// insert fails with sentinel.ErrConflict when the id already exists, so a
// racing insert is retried as an update.
func (s *Store) insert(ctx context.Context, entityType string, rec *models.Record) (int64, error) {
	table, err := s.table(entityType)
	if err != nil {
		return 0, err
	}
	cols, args, err := s.values(entityType, rec)
	if err != nil {
		return 0, err
	}
	cols = append(cols, "row_version")
	args = append(args, int64(1))

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING`,
		table, joinQuoted(cols), strings.Join(placeholders, ", "))
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, sqlerr.Translate("insert "+entityType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("insert %s %s: row exists: %w", entityType, rec.ID, sentinel.ErrConflict)
	}
	return 1, nil
}

func (s *Store) update(ctx context.Context, entityType string, rec *models.Record, original int64) (int64, error) {
	table, err := s.table(entityType)
	if err != nil {
		return 0, err
	}
	cols, args, err := s.values(entityType, rec)
	if err != nil {
		return 0, err
	}
	sets := make([]string, 0, len(cols))
	for i, c := range cols {
		if c == "id" || c == "created_at" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), i+1))
	}
	args = append(args, original)
	query := fmt.Sprintf(`UPDATE %s SET %s, row_version = row_version + 1 WHERE id = $1 AND row_version = $%d`,
		table, strings.Join(sets, ", "), len(args))
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, sqlerr.Translate("update "+entityType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("update %s %s at version %d: %w", entityType, rec.ID, original, sentinel.ErrConflict)
	}
	return original + 1, nil
}

func (s *Store) deleteVersioned(ctx context.Context, entityType string, id domain.EntityID, original int64) error {
	table, err := s.table(entityType)
	if err != nil {
		return err
	}
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND row_version = $2`, table), string(id), original)
	if err != nil {
		return sqlerr.Translate("delete "+entityType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s %s at version %d: %w", entityType, id, original, sentinel.ErrConflict)
	}
	return nil
}

// values lists the written columns with id first.
func (s *Store) values(entityType string, rec *models.Record) ([]string, []any, error) {
	native := s.columns[entityType]
	doc := make(map[string]any, len(rec.Fields))
	nativeArgs := make([]any, len(native))
	for k, v := range rec.Fields {
		doc[k] = v
	}
	for i, col := range native {
		if v, ok := doc[col]; ok {
			delete(doc, col)
			if v != nil {
				nativeArgs[i] = fmt.Sprint(v)
			}
		}
	}
	fieldsJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode fields of %s %s: %w", entityType, rec.ID, err)
	}

	now := s.clock().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	var isSanitized any
	if rec.IsSanitized != nil {
		isSanitized = *rec.IsSanitized
	}
	residency := rec.DataResidency
	if residency == "" {
		residency = domain.ResidencyNonEU
	}

	cols := []string{
		"id", "created_at", "updated_at", "data_origin_region", "data_residency",
		"is_sanitized", "sanitized_at", "sanitization_override_consent_at",
		"country_exposure_set_id", "last_synced_at", "last_sync_event_id", "fields",
	}
	args := []any{
		string(rec.ID), created, now, rec.DataOriginRegion, string(residency),
		isSanitized, rec.SanitizedAt, rec.SanitizationOverrideConsentAt,
		nullString(rec.CountryExposureSetID), rec.LastSyncedAt, nullString(rec.LastSyncEventID), string(fieldsJSON),
	}
	cols = append(cols, native...)
	args = append(args, nativeArgs...)
	return cols, args, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinQuoted(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
