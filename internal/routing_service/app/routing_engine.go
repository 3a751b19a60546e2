package app

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pocketline/smsrouter/internal/routing_service/adapters/agentgateway"
	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// InboundMessage is what the webhook boundary hands to the engine after
// provenance validation: the raw provider fields, untouched.
type InboundMessage struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
}

// RoutingEngine drives one inbound message through the pipeline:
// normalize -> resolve tenant -> validate content -> dispatch to the agent
// -> format the reply -> account both legs. Each call runs in the caller's
// goroutine with its own RoutingContext; the engine itself holds no
// per-request state and is safe for concurrent use.
type RoutingEngine struct {
	normalizer     *PhoneNormalizer
	resolver       TenantResolver
	processor      *ContentProcessor
	formatter      *ReplyFormatter
	ledger         UsageRecorder
	gateway        agentgateway.Gateway
	gatewayTimeout time.Duration
	logger         *slog.Logger
}

func NewRoutingEngine(
	normalizer *PhoneNormalizer,
	resolver TenantResolver,
	processor *ContentProcessor,
	formatter *ReplyFormatter,
	ledger UsageRecorder,
	gateway agentgateway.Gateway,
	gatewayTimeout time.Duration,
	logger *slog.Logger,
) *RoutingEngine {
	return &RoutingEngine{
		normalizer:     normalizer,
		resolver:       resolver,
		processor:      processor,
		formatter:      formatter,
		ledger:         ledger,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		logger:         logger.With("component", "routing_engine"),
	}
}

// Route processes one inbound message and returns the wire envelope plus the
// finished routing context (for status mapping at the webhook boundary).
// Every attempt, routed or rejected, writes exactly one inbound usage
// record; a routed attempt writes a second record for the outbound reply
// leg. Rejections yield an empty envelope so the sender learns nothing.
func (e *RoutingEngine) Route(ctx context.Context, msg InboundMessage) (Envelope, *domain.RoutingContext) {
	rc := domain.NewRoutingContext(msg.From, msg.Body, msg.ProviderMessageID)
	rc.RawTo = msg.To
	logger := e.logger.With("provider_message_id", msg.ProviderMessageID)

	canonical, ok := e.normalizer.Normalize(msg.From)
	if !ok {
		logger.WarnContext(ctx, "sender number failed normalization", "raw_from", msg.From)
		return e.reject(ctx, rc, domain.ReasonMalformedSender, nil)
	}
	rc.CanonicalFrom = canonical
	logger = logger.With("from", canonical)

	tenant, err := e.resolver.Resolve(ctx, canonical)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			logger.InfoContext(ctx, "no active binding for sender")
			return e.reject(ctx, rc, domain.ReasonUnknownSender, nil)
		default:
			logger.ErrorContext(ctx, "tenant lookup unavailable", "error", err)
			return e.reject(ctx, rc, domain.ReasonLookupUnavailable, nil)
		}
	}
	rc.Tenant = tenant
	if !tenant.Active {
		logger.InfoContext(ctx, "tenant is inactive", "tenant_id", tenant.TenantID)
		return e.reject(ctx, rc, domain.ReasonTenantInactive, nil)
	}

	sanitized, verdict, spamScore := e.processor.Process(rc.RawBody)
	rc.SanitizedBody = sanitized
	if verdict != domain.VerdictAccept {
		logger.InfoContext(ctx, "content rejected", "verdict", verdict, "spam_score", spamScore)
		var meta map[string]string
		if verdict == domain.VerdictRejectSpam {
			meta = map[string]string{domain.MetaSpamScore: strconv.FormatFloat(spamScore, 'f', 3, 64)}
		}
		return e.reject(ctx, rc, verdict.RejectionReason(), meta)
	}

	// The dispatch runs detached from the request's cancellation: if the
	// provider gives up waiting, the attempt still completes so the
	// ledger stays accurate. The undeliverable reply is simply discarded
	// by the provider.
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.gatewayTimeout)
	defer cancel()

	start := time.Now()
	reply, err := e.gateway.Run(dispatchCtx, tenant.TenantID, sanitized)
	agentGatewayDurationHist.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.WarnContext(ctx, "agent gateway invocation failed", "tenant_id", tenant.TenantID, "error", err)
		return e.reject(ctx, rc, domain.ReasonUpstreamError, nil)
	}

	envelope := e.formatter.Format(reply)
	rc.Outcome = domain.OutcomeRouted

	e.recordInbound(ctx, rc, true, nil, nil)
	e.recordOutbound(ctx, rc, reply, len(envelope.Messages))
	e.observe(rc)

	logger.InfoContext(ctx, "message routed",
		"tenant_id", tenant.TenantID,
		"segments", len(envelope.Messages),
		"latency_ms", rc.Elapsed().Milliseconds(),
	)
	return envelope, rc
}

// reject finishes the attempt with the given reason: one failed inbound
// usage record, outcome metrics, empty envelope.
func (e *RoutingEngine) reject(ctx context.Context, rc *domain.RoutingContext, reason domain.RejectionReason, meta map[string]string) (Envelope, *domain.RoutingContext) {
	rc.Outcome = reason.Outcome()
	e.recordInbound(ctx, rc, false, &reason, meta)
	e.observe(rc)
	return Envelope{}, rc
}

func (e *RoutingEngine) recordInbound(ctx context.Context, rc *domain.RoutingContext, success bool, reason *domain.RejectionReason, meta map[string]string) {
	rec := domain.NewUsageRecord(tenantRef(rc.Tenant), numberFor(rc), domain.DirectionInbound)
	rec.ByteLength = len(rc.RawBody)
	rec.Success = success
	rec.Latency = rc.Elapsed()
	rec.ErrorClass = reason
	meta = withMeta(meta, domain.MetaProviderMessageID, rc.ProviderMessageID)
	rec.Metadata = withMeta(meta, domain.MetaRecipientNumber, rc.RawTo)
	e.ledger.Record(ctx, rec)
}

func (e *RoutingEngine) recordOutbound(ctx context.Context, rc *domain.RoutingContext, reply string, segments int) {
	rec := domain.NewUsageRecord(tenantRef(rc.Tenant), rc.CanonicalFrom, domain.DirectionOutbound)
	rec.ByteLength = len(reply)
	rec.Success = true
	rec.Latency = rc.Elapsed()
	rec.Metadata = withMeta(
		map[string]string{domain.MetaSegments: strconv.Itoa(segments)},
		domain.MetaProviderMessageID, rc.ProviderMessageID,
	)
	e.ledger.Record(ctx, rec)
}

func (e *RoutingEngine) observe(rc *domain.RoutingContext) {
	outcome := string(rc.Outcome)
	routingAttemptsCounter.WithLabelValues(outcome).Inc()
	routingDurationHist.WithLabelValues(outcome).Observe(rc.Elapsed().Seconds())
}

func tenantRef(t *domain.TenantProjection) uuid.NullUUID {
	if t == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: t.TenantID, Valid: true}
}

// numberFor prefers the canonical number; before normalization succeeds only
// the raw sender string exists, and the record keeps that for abuse
// observability.
func numberFor(rc *domain.RoutingContext) string {
	if rc.CanonicalFrom != "" {
		return rc.CanonicalFrom
	}
	return rc.RawFrom
}

// withMeta sets key on the metadata bag, allocating it lazily; an empty value
// leaves the bag untouched.
func withMeta(meta map[string]string, key, value string) map[string]string {
	if value == "" {
		return meta
	}
	if meta == nil {
		meta = make(map[string]string, 2)
	}
	meta[key] = value
	return meta
}
