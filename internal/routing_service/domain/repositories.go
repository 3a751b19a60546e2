package domain

import "context"

// TenantBindingRepository is the read side of the tenant identity subsystem's
// binding store. The routing engine only ever reads projections; binding
// provisioning belongs to the admin surface.
type TenantBindingRepository interface {
	// FindActiveByNumber resolves a canonical phone number to its single
	// active tenant projection. Primary bindings take precedence over
	// secondary mappings. Returns ErrNotFound when no active binding
	// exists and ErrStoreUnavailable when the store cannot be queried.
	FindActiveByNumber(ctx context.Context, canonical string) (*TenantProjection, error)
}

// UsageRecordRepository appends accounting entries. Records are immutable
// once written; there is no update path.
type UsageRecordRepository interface {
	Append(ctx context.Context, rec *UsageRecord) error
}

// SpamTokenRepository serves the active spam token list consulted by the
// content processor. Tokens are lowercase.
type SpamTokenRepository interface {
	GetActiveTokens(ctx context.Context) ([]string, error)
}
