package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// BindingSource says which table a binding came from. Primary bindings are the
// tenant's own registered number; secondary mappings are additional numbers
// pointed at the same tenant. On conflict, primary wins.
type BindingSource string

const (
	BindingSourcePrimary   BindingSource = "primary-record"
	BindingSourceSecondary BindingSource = "secondary-mapping"
)

// TenantPhoneBinding is the persistent association between a canonical phone
// number and a tenant. At most one binding per number is active at a time;
// released numbers are deactivated, never deleted, so history survives
// number reassignment.
type TenantPhoneBinding struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PhoneNumber   string // canonical form, see app.PhoneNormalizer
	IsPrimary     bool
	Verified      bool
	Source        BindingSource
	IsActive      bool
	CreatedAt     time.Time
	DeactivatedAt sql.NullTime
}

// TenantProjection is the read-only view of a binding the routing engine
// caches and consults per message. Active=false means the number is still
// bound but the tenant is suspended; the engine rejects rather than routes.
type TenantProjection struct {
	TenantID uuid.UUID
	Active   bool
}
