package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type PgSpamTokenRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgSpamTokenRepository(db DB, logger *slog.Logger) *PgSpamTokenRepository {
	return &PgSpamTokenRepository{db: db, logger: logger.With("component", "spam_token_repository_pg")}
}

// GetActiveTokens returns the active spam token list, lowercased, for the
// content processor's heuristics.
func (r *PgSpamTokenRepository) GetActiveTokens(ctx context.Context) ([]string, error) {
	query := `SELECT token FROM spam_tokens WHERE is_active = TRUE ORDER BY token`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying spam tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scanning spam token: %w", err)
		}
		tokens = append(tokens, strings.ToLower(token))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spam tokens: %w", err)
	}
	return tokens, nil
}
