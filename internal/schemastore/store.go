// Package schemastore persists schema snapshots as an append-only
// version log per dataset. Versions are dense and strictly increasing;
// writers serialize through compare-and-append inside a transaction,
// backed by a unique (dataset_id, version) constraint. Resubmitting an
// identical (fields, policy) pair is a no-op returning the stored
// version.
package schemastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/schema"
)

// Store is the version-store contract. Save returns the resulting
// snapshot and whether a new version was appended.
type Store interface {
	Save(ctx context.Context, snap domain.SchemaSnapshot) (domain.SchemaSnapshot, bool, error)
	Latest(ctx context.Context, datasetID string) (domain.SchemaSnapshot, error)
	// ListVersions returns snapshots newest-first.
	ListVersions(ctx context.Context, datasetID string) ([]domain.SchemaSnapshot, error)
}

// DB is the narrow database handle the dialects depend on.
type DB interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier is the read surface shared by the pooled handle and an open
// transaction. Reads issued while a transaction is held must go through
// the transaction; the sqlite handle has a single connection and a
// pooled read would wait on the connection the transaction pins.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const saveRetries = 3

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return provider.ErrNotFound
	}
	return err
}

func validateSnapshot(snap domain.SchemaSnapshot) error {
	if snap.DatasetID == "" {
		return errors.New("dataset id is required")
	}
	if snap.PolicyHash == "" {
		return errors.New("policy hash is required")
	}
	return nil
}

func encodeFields(fields map[string]string) (string, error) {
	return schema.CanonicalFields(fields)
}

func decodeFields(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

func normalizeTime(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now().UTC()
	}
	return t.UTC()
}
