package domain

import "time"

// Outcome of one routing attempt.
type Outcome string

// RejectionReason classifies why an attempt did not produce a routed reply.
// The values double as the UsageRecord error class and as metric labels.
type RejectionReason string

const (
	OutcomeRouted Outcome = "routed"

	ReasonMalformedSender   RejectionReason = "malformed-sender"
	ReasonUnknownSender     RejectionReason = "unknown-sender"
	ReasonLookupUnavailable RejectionReason = "lookup-unavailable"
	ReasonTenantInactive    RejectionReason = "tenant-inactive"
	ReasonRejectedSpam      RejectionReason = "rejected-spam"
	ReasonRejectTooLong     RejectionReason = "reject-too-long"
	ReasonRejectEmpty       RejectionReason = "reject-empty"
	ReasonUpstreamError     RejectionReason = "upstream-error"
)

// Retryable reports whether the upstream provider should retry delivery of a
// message rejected for this reason. Only transient infrastructure failures
// qualify; content rejections and unknown senders never will.
func (r RejectionReason) Retryable() bool {
	return r == ReasonLookupUnavailable || r == ReasonUpstreamError
}

// Outcome returns the attempt outcome corresponding to this rejection.
func (r RejectionReason) Outcome() Outcome { return Outcome(r) }

// RoutingContext carries the per-request state of one inbound message through
// the routing pipeline. It lives for exactly one webhook call, is confined to
// that call's goroutine, and is never persisted; only the UsageRecords derived
// from it are.
type RoutingContext struct {
	RawFrom           string
	RawTo             string // shared number the message arrived on
	CanonicalFrom     string
	Tenant            *TenantProjection // nil until resolved
	RawBody           string
	SanitizedBody     string
	ProviderMessageID string
	StartedAt         time.Time
	Outcome           Outcome
}

// NewRoutingContext starts the clock for one inbound message.
func NewRoutingContext(rawFrom, rawBody, providerMessageID string) *RoutingContext {
	return &RoutingContext{
		RawFrom:           rawFrom,
		RawBody:           rawBody,
		ProviderMessageID: providerMessageID,
		StartedAt:         time.Now().UTC(),
	}
}

// Elapsed is the processing latency so far, recorded on UsageRecords.
func (c *RoutingContext) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}
