package domain

import "time"

// SchemaSnapshot is one append-only schema version for a dataset.
// Versions per dataset id are dense and strictly increasing; snapshots
// are never mutated or deleted.
type SchemaSnapshot struct {
	DatasetID  string            `json:"datasetId"`
	Version    int64             `json:"version"`
	PolicyHash string            `json:"policyHash"`
	Fields     map[string]string `json:"fields"`
	Format     string            `json:"format,omitempty"`
	SampledAt  time.Time         `json:"sampledAt,omitzero"`
	CreatedAt  time.Time         `json:"createdAt,omitzero"`
}
