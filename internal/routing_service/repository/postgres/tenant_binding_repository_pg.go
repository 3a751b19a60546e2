package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

type PgTenantBindingRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgTenantBindingRepository(db DB, logger *slog.Logger) *PgTenantBindingRepository {
	return &PgTenantBindingRepository{db: db, logger: logger.With("component", "tenant_binding_repository_pg")}
}

// FindActiveByNumber resolves a canonical number across both binding tables
// in one query. Primary bindings outrank secondary mappings; within a rank
// the newest binding wins, so a store that briefly holds two active rows for
// one number still resolves deterministically.
func (r *PgTenantBindingRepository) FindActiveByNumber(ctx context.Context, canonical string) (*domain.TenantProjection, error) {
	query := `
		SELECT tenant_id, tenant_active FROM (
			SELECT b.tenant_id, t.is_active AS tenant_active, 0 AS rank, b.created_at
			FROM tenant_phone_bindings b
			JOIN tenants t ON t.id = b.tenant_id
			WHERE b.phone_number = $1 AND b.is_active = TRUE
			UNION ALL
			SELECT m.tenant_id, t.is_active AS tenant_active, 1 AS rank, m.created_at
			FROM tenant_phone_secondary_mappings m
			JOIN tenants t ON t.id = m.tenant_id
			WHERE m.phone_number = $1 AND m.is_active = TRUE
		) candidates
		ORDER BY rank ASC, created_at DESC
		LIMIT 1
	`

	var projection domain.TenantProjection
	err := r.db.QueryRow(ctx, query, canonical).Scan(&projection.TenantID, &projection.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "binding lookup query failed", "number", canonical, "error", err)
		return nil, fmt.Errorf("%w: querying bindings: %v", domain.ErrStoreUnavailable, err)
	}
	return &projection, nil
}
