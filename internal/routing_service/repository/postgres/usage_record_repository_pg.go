package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

type PgUsageRecordRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgUsageRecordRepository(db DB, logger *slog.Logger) *PgUsageRecordRepository {
	return &PgUsageRecordRepository{db: db, logger: logger.With("component", "usage_record_repository_pg")}
}

// Append inserts one immutable usage record. There is deliberately no
// update or delete path; retention cleanup is an external batch concern.
func (r *PgUsageRecordRepository) Append(ctx context.Context, rec *domain.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, tenant_id, phone_number, direction, byte_length,
			success, latency_ms, error_class, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var errorClass *string
	if rec.ErrorClass != nil {
		s := string(*rec.ErrorClass)
		errorClass = &s
	}

	var metadata []byte
	if len(rec.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling usage record metadata: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.PhoneNumber,
		string(rec.Direction),
		rec.ByteLength,
		rec.Success,
		rec.Latency.Milliseconds(),
		errorClass,
		metadata,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "usage record insert failed", "record_id", rec.ID, "error", err)
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}
