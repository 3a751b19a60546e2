package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction of the message leg a UsageRecord accounts for.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Recognized metadata keys on a UsageRecord. The metadata bag is a typed
// string map restricted to this set so the ledger schema stays stable;
// unknown keys are a bug, not an extension point.
const (
	MetaProviderMessageID = "provider_message_id"
	MetaRecipientNumber   = "recipient_number"
	MetaSegments          = "segments"
	MetaSpamScore         = "spam_score"
)

// UsageRecord is one immutable accounting entry for one message leg. Exactly
// one inbound record is written per routing attempt, success or failure; a
// successful routing writes a second record for the outbound reply leg.
type UsageRecord struct {
	ID          uuid.UUID
	TenantID    uuid.NullUUID // unset for rejections before tenant resolution
	PhoneNumber string        // canonical when known, raw otherwise
	Direction   Direction
	ByteLength  int
	Success     bool
	Latency     time.Duration
	ErrorClass  *RejectionReason // nil on success
	Metadata    map[string]string
	CreatedAt   time.Time
}

// NewUsageRecord stamps identity and creation time; everything else is set by
// the routing engine before handing the record to the ledger.
func NewUsageRecord(tenantID uuid.NullUUID, number string, direction Direction) *UsageRecord {
	return &UsageRecord{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PhoneNumber: number,
		Direction:   direction,
		CreatedAt:   time.Now().UTC(),
	}
}
