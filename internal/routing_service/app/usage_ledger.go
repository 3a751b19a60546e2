package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pocketline/smsrouter/internal/platform/messagebroker"
	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// UsageRecorder is the ledger surface the routing engine depends on.
type UsageRecorder interface {
	Record(ctx context.Context, rec *domain.UsageRecord)
}

// usageEvent is the JSON payload published per durably written record for
// downstream analytics consumers.
type usageEvent struct {
	ID          string  `json:"id"`
	TenantID    *string `json:"tenant_id,omitempty"`
	PhoneNumber string  `json:"phone_number"`
	Direction   string  `json:"direction"`
	ByteLength  int     `json:"byte_length"`
	Success     bool    `json:"success"`
	LatencyMS   int64   `json:"latency_ms"`
	ErrorClass  *string `json:"error_class,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// UsageLedger is the append-only accounting sink. Record is fire-and-forget
// for the caller: entries go into a buffered channel and a single worker
// appends them to the store, so the webhook response path never waits on
// ledger durability beyond a short bounded flush.
//
// Durability policy: success records must not be lost (they feed billing),
// so a full buffer degrades to a bounded synchronous write; failure records
// are best-effort and are dropped, with a metric, when the buffer is full.
type UsageLedger struct {
	repo         domain.UsageRecordRepository
	broker       messagebroker.NATSClient // nil disables event publication
	subject      string
	logger       *slog.Logger
	queue        chan *domain.UsageRecord
	flushTimeout time.Duration
	drainTimeout time.Duration
	stopped      atomic.Bool
}

func NewUsageLedger(
	repo domain.UsageRecordRepository,
	broker messagebroker.NATSClient,
	subject string,
	bufferSize int,
	flushTimeout, drainTimeout time.Duration,
	logger *slog.Logger,
) *UsageLedger {
	return &UsageLedger{
		repo:         repo,
		broker:       broker,
		subject:      subject,
		logger:       logger.With("component", "usage_ledger"),
		queue:        make(chan *domain.UsageRecord, bufferSize),
		flushTimeout: flushTimeout,
		drainTimeout: drainTimeout,
	}
}

// Record enqueues one usage record. Never blocks longer than the configured
// flush timeout and never returns an error to the routing path.
//
// After the worker has stopped the queue has no consumer, so success records
// are written synchronously instead of enqueued: requests still draining
// through HTTP shutdown must not lose their accounting.
func (l *UsageLedger) Record(ctx context.Context, rec *domain.UsageRecord) {
	if l.stopped.Load() {
		if !rec.Success {
			ledgerRecordsDroppedCounter.Inc()
			l.logger.WarnContext(ctx, "ledger stopped, dropping failure record",
				"record_id", rec.ID, "error_class", rec.ErrorClass)
			return
		}
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.flushTimeout)
		defer cancel()
		l.write(writeCtx, rec)
		return
	}

	select {
	case l.queue <- rec:
		ledgerQueueDepthGauge.Set(float64(len(l.queue)))
		return
	default:
	}

	if !rec.Success {
		// Best-effort leg: losing a failure record is acceptable,
		// stalling the webhook response is not.
		ledgerRecordsDroppedCounter.Inc()
		l.logger.WarnContext(ctx, "ledger buffer full, dropping failure record",
			"record_id", rec.ID, "error_class", rec.ErrorClass)
		return
	}

	// Success records affect billing and must land. Bypass the full buffer
	// with a bounded synchronous write.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.flushTimeout)
	defer cancel()
	l.write(writeCtx, rec)
}

// Run consumes the queue until ctx is cancelled, then drains whatever is
// buffered under the drain timeout. Intended to run under the service
// errgroup.
func (l *UsageLedger) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-l.queue:
			l.write(ctx, rec)
			ledgerQueueDepthGauge.Set(float64(len(l.queue)))
		case <-ctx.Done():
			l.stopped.Store(true)
			return l.drain()
		}
	}
}

func (l *UsageLedger) drain() error {
	drainCtx, cancel := context.WithTimeout(context.Background(), l.drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-l.queue:
			l.write(drainCtx, rec)
		case <-drainCtx.Done():
			if n := len(l.queue); n > 0 {
				l.logger.Warn("ledger drain timed out with records remaining", "remaining", n)
			}
			return nil
		default:
			return nil
		}
	}
}

// write appends one record, retrying once for success records before giving
// up, then publishes the usage event best-effort.
func (l *UsageLedger) write(ctx context.Context, rec *domain.UsageRecord) {
	err := l.repo.Append(ctx, rec)
	if err != nil && rec.Success {
		l.logger.WarnContext(ctx, "usage record append failed, retrying", "record_id", rec.ID, "error", err)
		time.Sleep(100 * time.Millisecond)
		err = l.repo.Append(ctx, rec)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "usage record lost", "record_id", rec.ID, "success", rec.Success, "error", err)
		ledgerRecordsDroppedCounter.Inc()
		return
	}
	ledgerRecordsWrittenCounter.WithLabelValues(string(rec.Direction)).Inc()
	l.publish(ctx, rec)
}

func (l *UsageLedger) publish(ctx context.Context, rec *domain.UsageRecord) {
	if l.broker == nil {
		return
	}
	event := usageEvent{
		ID:          rec.ID.String(),
		PhoneNumber: rec.PhoneNumber,
		Direction:   string(rec.Direction),
		ByteLength:  rec.ByteLength,
		Success:     rec.Success,
		LatencyMS:   rec.Latency.Milliseconds(),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if rec.TenantID.Valid {
		id := rec.TenantID.UUID.String()
		event.TenantID = &id
	}
	if rec.ErrorClass != nil {
		class := string(*rec.ErrorClass)
		event.ErrorClass = &class
	}

	data, err := json.Marshal(event)
	if err != nil {
		usageEventsPublishedCounter.WithLabelValues("error").Inc()
		return
	}
	if err := l.broker.Publish(ctx, l.subject, data); err != nil {
		usageEventsPublishedCounter.WithLabelValues("error").Inc()
		l.logger.WarnContext(ctx, "usage event publish failed", "record_id", rec.ID, "error", err)
		return
	}
	usageEventsPublishedCounter.WithLabelValues("published").Inc()
}
