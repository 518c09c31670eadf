// dao/resource_dao.go
package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	gw_errors "github.com/gatewarden/gatewarden/errors"
	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/model"
)

// ResourceDAO reads resources, rules and grants from Postgres. Every query
// carries an explicit timeout; a slow store must surface as an error, never
// as a hung request.
type ResourceDAO struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func NewResourceDAO(pool *pgxpool.Pool, queryTimeout time.Duration) *ResourceDAO {
	return &ResourceDAO{Pool: pool, QueryTimeout: queryTimeout}
}

func (dao *ResourceDAO) ResourceByHost(ctx context.Context, host string) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT id, org_id, host, blocked, require_auth,
               method_access_token, method_header_auth, method_pincode,
               method_password, method_email_token, method_sso,
               COALESCE(pincode_hash, ''), COALESCE(password_hash, ''),
               COALESCE(header_auth_user, ''), COALESCE(header_auth_hash, '')
        FROM resources
        WHERE host = $1
        `
	var r model.Resource
	err := dao.Pool.QueryRow(ctx, query, host).Scan(
		&r.ID, &r.OrgID, &r.Host, &r.Blocked, &r.RequireAuth,
		&r.Methods.AccessToken, &r.Methods.HeaderAuth, &r.Methods.Pincode,
		&r.Methods.Password, &r.Methods.EmailToken, &r.Methods.SSO,
		&r.PincodeHash, &r.PasswordHash, &r.HeaderAuthUser, &r.HeaderAuthHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gw_errors.ErrResourceNotFound
	}
	if err != nil {
		logger.Error("Failed to query resource by host", zap.Error(err), zap.String("host", host))
		return nil, fmt.Errorf("failed to query resource by host: %w", err)
	}
	return &r, nil
}

func (dao *ResourceDAO) RulesForResource(ctx context.Context, resourceID string) ([]model.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT id, resource_id, priority, path_prefix,
               COALESCE(method, ''), COALESCE(source_cidr, ''), action
        FROM resource_rules
        WHERE resource_id = $1
        ORDER BY priority DESC
        `
	rows, err := dao.Pool.Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.Priority, &r.PathPrefix, &r.Method, &r.SourceCIDR, &r.Action); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return rules, nil
}

func (dao *ResourceDAO) AccessTokenValid(ctx context.Context, resourceID, tokenHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT EXISTS (
            SELECT 1 FROM resource_access_tokens
            WHERE resource_id = $1 AND token_hash = $2 AND (expires_at IS NULL OR expires_at > now())
        )
        `
	var valid bool
	if err := dao.Pool.QueryRow(ctx, query, resourceID, tokenHash).Scan(&valid); err != nil {
		return false, fmt.Errorf("failed to check access token: %w", err)
	}
	return valid, nil
}

func (dao *ResourceDAO) ResourceGrant(ctx context.Context, resourceID, userID string) (*model.Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT user_id, resource_id, role
        FROM resource_grants
        WHERE resource_id = $1 AND user_id = $2
        `
	var g model.Grant
	err := dao.Pool.QueryRow(ctx, query, resourceID, userID).Scan(&g.UserID, &g.ResourceID, &g.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gw_errors.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query resource grant: %w", err)
	}
	return &g, nil
}

func (dao *ResourceDAO) OrgRole(ctx context.Context, orgID, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.QueryTimeout)
	defer cancel()

	const query = `
        SELECT COALESCE(role, '')
        FROM org_members
        WHERE org_id = $1 AND user_id = $2
        `
	var role string
	err := dao.Pool.QueryRow(ctx, query, orgID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query org role: %w", err)
	}
	return role, nil
}
