package policy

import (
	"context"
	"database/sql"
	"fmt"

	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/tx"
)

// PostgresLoader reads descriptors from the entity_sync_configurations table.
type PostgresLoader struct {
	db *sql.DB
}

func NewPostgresLoader(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db}
}

// Load returns every configured descriptor, ordered by name.
func (l *PostgresLoader) Load(ctx context.Context) ([]Descriptor, error) {
	query := `
		SELECT entity_type_name, table_name, data_classification, sync_scope,
		       legal_basis, legal_basis_ref, processing_purpose,
		       requires_sanitization_for_global_sync, allow_sanitization_override_consent,
		       depends_on_entities, is_enabled, notes
		FROM entity_sync_configurations
		ORDER BY entity_type_name
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "load sync configurations")
	}
	defer rows.Close()

	var out []Descriptor
	for rows.Next() {
		var (
			d         Descriptor
			class     string
			scope     string
			basis     string
			dependsOn string
		)
		if err := rows.Scan(&d.Name, &d.TableName, &class, &scope, &basis, &d.LegalBasisRef,
			&d.ProcessingPurpose, &d.RequiresSanitizationForGlobalSync, &d.AllowSanitizationOverrideConsent,
			&dependsOn, &d.IsEnabled, &d.Notes); err != nil {
			return nil, fmt.Errorf("scan sync configuration: %w", err)
		}
		d.DataClassification = DataClassification(class)
		d.SyncScope = SyncScope(scope)
		d.LegalBasis = LegalBasis(basis)
		d.DependsOn = ParseDependsOn(dependsOn)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync configurations: %w", err)
	}
	return out, nil
}

// Seed upserts descriptors inside a single transaction. Existing rows keep
// their is_enabled flag so operators can disable a type without it being
// re-enabled on the next deploy.
func (l *PostgresLoader) Seed(ctx context.Context, descriptors []Descriptor) error {
	return tx.Run(ctx, l.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, l.db)
		query := `
			INSERT INTO entity_sync_configurations (
				entity_type_name, table_name, data_classification, sync_scope, legal_basis,
				legal_basis_ref, processing_purpose, requires_sanitization_for_global_sync,
				allow_sanitization_override_consent, depends_on_entities, is_enabled, notes,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			ON CONFLICT (entity_type_name) DO UPDATE SET
				table_name = EXCLUDED.table_name,
				data_classification = EXCLUDED.data_classification,
				sync_scope = EXCLUDED.sync_scope,
				legal_basis = EXCLUDED.legal_basis,
				legal_basis_ref = EXCLUDED.legal_basis_ref,
				processing_purpose = EXCLUDED.processing_purpose,
				requires_sanitization_for_global_sync = EXCLUDED.requires_sanitization_for_global_sync,
				allow_sanitization_override_consent = EXCLUDED.allow_sanitization_override_consent,
				depends_on_entities = EXCLUDED.depends_on_entities,
				notes = EXCLUDED.notes,
				updated_at = NOW()
		`
		for _, d := range descriptors {
			if err := d.Validate(); err != nil {
				return err
			}
			if _, err := exec.ExecContext(ctx, query,
				d.Name, d.TableName, d.DataClassification, d.SyncScope, d.LegalBasis,
				d.LegalBasisRef, d.ProcessingPurpose, d.RequiresSanitizationForGlobalSync,
				d.AllowSanitizationOverrideConsent, FormatDependsOn(d.DependsOn), d.IsEnabled, d.Notes,
			); err != nil {
				return fmt.Errorf("seed sync configuration %s: %w", d.Name, err)
			}
		}
		return nil
	})
}
