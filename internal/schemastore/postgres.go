package schemastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

// PostgresStore is the production dialect.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

func NewPostgres(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS schema_versions (
	record_id   TEXT PRIMARY KEY,
	dataset_id  TEXT NOT NULL,
	version     BIGINT NOT NULL,
	policy_hash TEXT NOT NULL,
	fields      JSONB NOT NULL,
	format      TEXT NOT NULL DEFAULT '',
	sampled_at  TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (dataset_id, version)
);
CREATE INDEX IF NOT EXISTS schema_versions_dataset_idx
	ON schema_versions (dataset_id, version DESC);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema_versions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snap domain.SchemaSnapshot) (domain.SchemaSnapshot, bool, error) {
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
		if !isUniqueViolation(err) {
			return domain.SchemaSnapshot{}, false, err
		}
		// lost the append race; re-read and try again
		lastErr = err
	}
	return domain.SchemaSnapshot{}, false, fmt.Errorf("append schema version: %w", lastErr)
}

func (s *PostgresStore) saveOnce(ctx context.Context, snap domain.SchemaSnapshot, encoded string) (domain.SchemaSnapshot, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		latestVersion int64
		latestPolicy  string
		latestFields  []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT version, policy_hash, fields
		 FROM schema_versions
		 WHERE dataset_id = $1
		 ORDER BY version DESC
		 LIMIT 1
		 FOR UPDATE`,
		snap.DatasetID,
	).Scan(&latestVersion, &latestPolicy, &latestFields)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		latestVersion = 0
	case err != nil:
		return domain.SchemaSnapshot{}, false, fmt.Errorf("read latest: %w", err)
	default:
		if latestPolicy == snap.PolicyHash && string(latestFields) == encoded {
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
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(),
		snap.DatasetID,
		snap.Version,
		snap.PolicyHash,
		encoded,
		snap.Format,
		snap.SampledAt,
		snap.CreatedAt,
	)
	if err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.SchemaSnapshot{}, false, fmt.Errorf("commit: %w", err)
	}
	return snap, true, nil
}

func (s *PostgresStore) version(ctx context.Context, q querier, datasetID string, version int64) (domain.SchemaSnapshot, error) {
	row := q.QueryRowContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = $1 AND version = $2`,
		datasetID, version,
	)
	return scanPostgres(row)
}

func (s *PostgresStore) Latest(ctx context.Context, datasetID string) (domain.SchemaSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		datasetID,
	)
	return scanPostgres(row)
}

func (s *PostgresStore) ListVersions(ctx context.Context, datasetID string) ([]domain.SchemaSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id, version, policy_hash, fields, format, sampled_at, created_at
		 FROM schema_versions
		 WHERE dataset_id = $1
		 ORDER BY version DESC`,
		datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []domain.SchemaSnapshot
	for rows.Next() {
		snap, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgres(row rowScanner) (domain.SchemaSnapshot, error) {
	var (
		snap   domain.SchemaSnapshot
		fields []byte
	)
	err := row.Scan(&snap.DatasetID, &snap.Version, &snap.PolicyHash, &fields, &snap.Format, &snap.SampledAt, &snap.CreatedAt)
	if err != nil {
		return domain.SchemaSnapshot{}, handleNotFound(err)
	}
	snap.Fields, err = decodeFields(fields)
	if err != nil {
		return domain.SchemaSnapshot{}, err
	}
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
