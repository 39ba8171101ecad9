package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "regionsync/pkg/domain-errors"
)

// Record is the serialized form of a descriptor, shared by the topology file
// and the entity_sync_configurations table.
type Record struct {
	EntityTypeName                    string   `yaml:"name"`
	TableName                         string   `yaml:"tableName,omitempty"`
	DataClassification                string   `yaml:"dataClassification"`
	SyncScope                         string   `yaml:"syncScope"`
	LegalBasis                        string   `yaml:"legalBasis,omitempty"`
	LegalBasisRef                     string   `yaml:"legalBasisRef,omitempty"`
	ProcessingPurpose                 string   `yaml:"processingPurpose,omitempty"`
	RequiresSanitizationForGlobalSync bool     `yaml:"requiresSanitizationForGlobalSync"`
	AllowSanitizationOverrideConsent  bool     `yaml:"allowSanitizationOverrideConsent"`
	DependsOn                         []string `yaml:"dependsOn,omitempty"`
	Enabled                           *bool    `yaml:"enabled,omitempty"`
	Notes                             string   `yaml:"notes,omitempty"`
}

// Descriptor converts the record. A missing enabled flag means enabled.
func (r Record) Descriptor() Descriptor {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	basis := LegalBasis(r.LegalBasis)
	if basis == "" {
		basis = LegalBasisNone
	}
	var deps []string
	for _, dep := range r.DependsOn {
		deps = append(deps, ParseDependsOn(dep)...)
	}
	return Descriptor{
		Name:                              r.EntityTypeName,
		TableName:                         r.TableName,
		DataClassification:                DataClassification(r.DataClassification),
		SyncScope:                         SyncScope(r.SyncScope),
		LegalBasis:                        basis,
		LegalBasisRef:                     r.LegalBasisRef,
		ProcessingPurpose:                 r.ProcessingPurpose,
		RequiresSanitizationForGlobalSync: r.RequiresSanitizationForGlobalSync,
		AllowSanitizationOverrideConsent:  r.AllowSanitizationOverrideConsent,
		DependsOn:                         deps,
		IsEnabled:                         enabled,
		Notes:                             r.Notes,
	}
}

// RecordOf is the inverse of Record.Descriptor.
func RecordOf(d Descriptor) Record {
	enabled := d.IsEnabled
	return Record{
		EntityTypeName:                    d.Name,
		TableName:                         d.TableName,
		DataClassification:                string(d.DataClassification),
		SyncScope:                         string(d.SyncScope),
		LegalBasis:                        string(d.LegalBasis),
		LegalBasisRef:                     d.LegalBasisRef,
		ProcessingPurpose:                 d.ProcessingPurpose,
		RequiresSanitizationForGlobalSync: d.RequiresSanitizationForGlobalSync,
		AllowSanitizationOverrideConsent:  d.AllowSanitizationOverrideConsent,
		DependsOn:                         d.DependsOn,
		Enabled:                           &enabled,
		Notes:                             d.Notes,
	}
}

type fileDocument struct {
	Entities []Record `yaml:"entities"`
}

// Parse decodes the entities section of a topology document.
func Parse(data []byte) ([]Descriptor, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "decode policy document")
	}
	out := make([]Descriptor, 0, len(doc.Entities))
	for _, rec := range doc.Entities {
		out = append(out, rec.Descriptor())
	}
	return out, nil
}

// LoadFile reads descriptors from a YAML topology file.
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, fmt.Sprintf("read policy file %s", path))
	}
	return Parse(data)
}

// Marshal renders descriptors as a topology document.
func Marshal(descriptors []Descriptor) ([]byte, error) {
	doc := fileDocument{Entities: make([]Record, 0, len(descriptors))}
	for _, d := range descriptors {
		doc.Entities = append(doc.Entities, RecordOf(d))
	}
	return yaml.Marshal(doc)
}
