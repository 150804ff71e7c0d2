package schemastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

// SQLiteStore is the embedded dialect for local runs and tests. The
// sqlite handle is opened with a single connection, so transactions
// serialize writers without explicit row locks.
type SQLiteStore struct {
	db  DB
	now func() time.Time
}

func NewSQLite(db DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_versions (
	record_id   TEXT PRIMARY KEY,
	dataset_id  TEXT NOT NULL,
	version     INTEGER NOT NULL,
	policy_hash TEXT NOT NULL,
	fields      TEXT NOT NULL,
	format      TEXT NOT NULL DEFAULT '',
	sampled_at  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE (dataset_id, version)
);
`

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("ensure schema_versions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap domain.SchemaSnapshot) (domain.SchemaSnapshot, bool, error) {
	if err := validateSnapshot(snap); err != nil {
		return domain.SchemaSnapshot{}, false, err
	}
	encoded, err := encodeFields(snap.Fields)
	if err != nil {
		return domain.SchemaSnapshot{}, false, err
	}

	var lastErr error
	for range saveRetries {
		out, created, err := s.saveOnce(ctx, snap, encoded)
		if err == nil {
			return out, created, nil
		}
		if !isSQLiteUniqueViolation(err) {
			return domain.SchemaSnapshot{}, false, err
		}
		lastErr = err
	}
	return domain.SchemaSnapshot{}, false, fmt.Errorf("append schema version: %w", lastErr)
}

func (s *SQLiteStore) saveOnce(ctx context.Context, snap domain.SchemaSnapshot, encoded string) (domain.SchemaSnapshot, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		latestVersion int64
		latestPolicy  string
		latestFields  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT version, policy_hash, fields
		 FROM schema_versions
		 WHERE dataset_id = ?
		 ORDER BY version DESC
		 LIMIT 1`,
		snap.DatasetID,
	).Scan(&latestVersion, &latestPolicy, &latestFields)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		latestVersion = 0
	case err != nil:
		return domain.SchemaSnapshot{}, false, fmt.Errorf("read latest: %w", err)
	default:
		if latestPolicy == snap.PolicyHash && latestFields == encoded {
			existing, err := s.version(ctx, tx, snap.DatasetID, latestVersion)
			if err != nil {
				return domain.SchemaSnapshot{}, false, err
			}
			return existing, false, tx.Commit()
		}
	}

	snap.Version = latestVersion + 1
	snap.SampledAt = normalizeTime(snap.SampledAt, s.now)
	snap.CreatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_versions
			(record_id, dataset_id, version, policy_hash, fields, format, sampled_at, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		uuid.NewString(),
		snap.DatasetID,
		snap.Version,
		snap.PolicyHash,
		encoded,
		snap.Format,
		snap.SampledAt.Unix(),
		snap.CreatedAt.Unix(),
	)
	if err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("commit: %w", err)
	}
	return snap, true, nil
}

func (s *SQLiteStore) version(ctx context.Context, q querier, datasetID string, version int64) (domain.SchemaSnapshot, error) {
	row := q.QueryRowContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = ? AND version = ?`,
		datasetID, version,
	)
	return scanSQLite(row)
}

func (s *SQLiteStore) Latest(ctx context.Context, datasetID string) (domain.SchemaSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = ?
		 ORDER BY version DESC
		 LIMIT 1`,
		datasetID,
	)
	return scanSQLite(row)
}

func (s *SQLiteStore) ListVersions(ctx context.Context, datasetID string) ([]domain.SchemaSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = ?
		 ORDER BY version DESC`,
		datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []domain.SchemaSnapshot
	for rows.Next() {
		snap, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func scanSQLite(row rowScanner) (domain.SchemaSnapshot, error) {
	var (
		snap      domain.SchemaSnapshot
		fields    []byte
		sampledAt int64
		createdAt int64
	)
	err := row.Scan(&snap.DatasetID, &snap.Version, &snap.PolicyHash, &fields, &snap.Format, &sampledAt, &createdAt)
	if err != nil {
		return domain.SchemaSnapshot{}, handleNotFound(err)
	}
	snap.Fields, err = decodeFields(fields)
	if err != nil {
		return domain.SchemaSnapshot{}, err
	}
	snap.SampledAt = time.Unix(sampledAt, 0).UTC()
	snap.CreatedAt = time.Unix(createdAt, 0).UTC()
	return snap, nil
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
