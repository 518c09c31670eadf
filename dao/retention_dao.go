// dao/retention_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/model"
)

// RetentionDAO reads per-tenant retention policies from Postgres.
type RetentionDAO struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func NewRetentionDAO(pool *pgxpool.Pool, queryTimeout time.Duration) *RetentionDAO {
	return &RetentionDAO{Pool: pool, QueryTimeout: queryTimeout}
}

// RetentionPolicy loads one tenant's policy. A tenant with no rows gets an
// empty policy, which disables retention for every log kind.
func (dao *RetentionDAO) RetentionPolicy(ctx context.Context, orgID string) (*model.RetentionPolicy, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT log_kind, retention_days
        FROM retention_policies
        WHERE org_id = $1
        `
	rows, err := dao.Pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention policy: %w", err)
	}
	defer rows.Close()

	policy := &model.RetentionPolicy{OrgID: orgID, Days: make(map[model.LogKind]int)}
	for rows.Next() {
		var kind string
		var days int
		if err := rows.Scan(&kind, &days); err != nil {
			return nil, fmt.Errorf("failed to scan retention policy: %w", err)
		}
		policy.Days[model.LogKind(kind)] = days
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retention policies: %w", err)
	}
	return policy, nil
}

// RetentionPolicies loads every tenant's policy for the cleanup sweep.
func (dao *RetentionDAO) RetentionPolicies(ctx context.Context) ([]model.RetentionPolicy, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT org_id, log_kind, retention_days
        FROM retention_policies
        ORDER BY org_id
        `
	rows, err := dao.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention policies: %w", err)
	}
	defer rows.Close()

	byOrg := make(map[string]*model.RetentionPolicy)
	var order []string
	for rows.Next() {
		var orgID, kind string
		var days int
		if err := rows.Scan(&orgID, &kind, &days); err != nil {
			return nil, fmt.Errorf("failed to scan retention policy: %w", err)
		}
		p, ok := byOrg[orgID]
		if !ok {
			p = &model.RetentionPolicy{OrgID: orgID, Days: make(map[model.LogKind]int)}
			byOrg[orgID] = p
			order = append(order, orgID)
		}
		p.Days[model.LogKind(kind)] = days
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retention policies: %w", err)
	}

	policies := make([]model.RetentionPolicy, 0, len(order))
	for _, orgID := range order {
		policies = append(policies, *byOrg[orgID])
	}
	return policies, nil
}
