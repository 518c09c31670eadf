// audit/repository.go
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/model"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

// Repository is the storage surface for audit records: one bulk write per
// flush, bulk deletes for retention, and a filtered read for debugging.
type Repository interface {
	BulkInsert(ctx context.Context, records []Record) error
	DeleteOlderThan(ctx context.Context, orgID string, kind model.LogKind, cutoff time.Time) (int64, error)
	QueryRecords(ctx context.Context, from, to time.Time, orgID, resourceID string) ([]Record, error)
}

// PostgresRepository persists audit records in the relational store.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// BulkInsert writes an entire batch with a single COPY.
func (r *PostgresRepository) BulkInsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"audit_records"},
		[]string{
			"id", "ts", "org_id", "actor_type", "actor", "actor_id",
			"resource_id", "allowed", "reason", "kind",
			"original_url", "scheme", "host", "path", "method", "client_ip", "tls",
		},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{
				rec.ID, rec.Timestamp.UTC(), rec.OrgID, rec.ActorType, rec.Actor, rec.ActorID,
				rec.ResourceID, rec.Allowed, int(rec.Reason), string(rec.Kind),
				rec.Request.OriginalURL, rec.Request.Scheme, rec.Request.Host,
				rec.Request.Path, rec.Request.Method, rec.Request.ClientIP, rec.Request.TLS,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert audit records: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, orgID string, kind model.LogKind, cutoff time.Time) (int64, error) {
	const query = `
        DELETE FROM audit_records
        WHERE org_id = $1 AND kind = $2 AND ts < $3
        `
	tag, err := r.pool.Exec(ctx, query, orgID, string(kind), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) QueryRecords(ctx context.Context, from, to time.Time, orgID, resourceID string) ([]Record, error) {
	const query = `
        SELECT id, ts, org_id, actor_type, actor, actor_id,
               resource_id, allowed, reason, kind,
               original_url, scheme, host, path, method, client_ip, tls
        FROM audit_records
        WHERE ts >= $1 AND ts <= $2
          AND ($3 = '' OR org_id = $3)
          AND ($4 = '' OR resource_id = $4)
        ORDER BY ts DESC
        LIMIT 1000
        `
	rows, err := r.pool.Query(ctx, query, from.UTC(), to.UTC(), orgID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var reason int
		var kind string
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.OrgID, &rec.ActorType, &rec.Actor, &rec.ActorID,
			&rec.ResourceID, &rec.Allowed, &reason, &kind,
			&rec.Request.OriginalURL, &rec.Request.Scheme, &rec.Request.Host,
			&rec.Request.Path, &rec.Request.Method, &rec.Request.ClientIP, &rec.Request.TLS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Reason = pdp_model.ReasonCode(reason)
		rec.Kind = model.LogKind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}
	return records, nil
}
