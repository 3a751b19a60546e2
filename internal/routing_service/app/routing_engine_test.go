package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pocketline/smsrouter/internal/routing_service/adapters/agentgateway"
	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// --- Mocks ---

type MockTenantResolver struct {
	mock.Mock
}

func (m *MockTenantResolver) Resolve(ctx context.Context, canonical string) (*domain.TenantProjection, error) {
	args := m.Called(ctx, canonical)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantProjection), args.Error(1)
}

// captureRecorder collects every usage record handed to the ledger.
type captureRecorder struct {
	mu   sync.Mutex
	recs []*domain.UsageRecord
}

func (c *captureRecorder) Record(ctx context.Context, rec *domain.UsageRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *captureRecorder) records() []*domain.UsageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.UsageRecord(nil), c.recs...)
}

func setupEngineTest(t *testing.T, gateway *agentgateway.StubGateway) (*RoutingEngine, *MockTenantResolver, *captureRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := new(MockTenantResolver)
	recorder := &captureRecorder{}

	processor := NewContentProcessor(&stubSpamTokenRepo{}, logger, 1600, 0.7)
	engine := NewRoutingEngine(
		NewPhoneNormalizer("1"),
		resolver,
		processor,
		NewReplyFormatter(160),
		recorder,
		gateway,
		time.Second,
		logger,
	)
	return engine, resolver, recorder
}

// --- Tests ---

func TestRoutingEngine_RoutedMessageWritesBothLegs(t *testing.T) {
	gateway := &agentgateway.StubGateway{Reply: "Hi there"}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	tenantID := uuid.New()
	resolver.On("Resolve", mock.Anything, "+15550101001").
		Return(&domain.TenantProjection{TenantID: tenantID, Active: true}, nil).Once()

	envelope, rc := engine.Route(context.Background(), InboundMessage{
		From:              "+1 (555) 010-1001",
		To:                "+15550000000",
		Body:              "Hello",
		ProviderMessageID: "SM123",
	})

	assert.Equal(t, domain.OutcomeRouted, rc.Outcome)
	require.Len(t, envelope.Messages, 1)
	assert.Equal(t, "Hi there", envelope.Messages[0])
	assert.EqualValues(t, 1, gateway.Calls())

	recs := recorder.records()
	require.Len(t, recs, 2, "routed attempt writes the inbound and the outbound leg")

	inbound, outbound := recs[0], recs[1]
	assert.Equal(t, domain.DirectionInbound, inbound.Direction)
	assert.True(t, inbound.Success)
	assert.Nil(t, inbound.ErrorClass)
	require.True(t, inbound.TenantID.Valid)
	assert.Equal(t, tenantID, inbound.TenantID.UUID)
	assert.Equal(t, "+15550101001", inbound.PhoneNumber)
	assert.Equal(t, "SM123", inbound.Metadata[domain.MetaProviderMessageID])
	assert.Equal(t, "+15550000000", inbound.Metadata[domain.MetaRecipientNumber],
		"the shared number the message arrived on is kept on the inbound leg")

	assert.Equal(t, domain.DirectionOutbound, outbound.Direction)
	assert.True(t, outbound.Success)
	assert.Equal(t, tenantID, outbound.TenantID.UUID)
	assert.Equal(t, len("Hi there"), outbound.ByteLength)
	assert.Equal(t, "1", outbound.Metadata[domain.MetaSegments])

	resolver.AssertExpectations(t)
}

func TestRoutingEngine_UnknownSender(t *testing.T) {
	gateway := &agentgateway.StubGateway{Reply: "never sent"}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	resolver.On("Resolve", mock.Anything, "+15559999").
		Return(nil, domain.ErrNotFound).Once()

	envelope, rc := engine.Route(context.Background(), InboundMessage{
		From: "555-9999", Body: "hi", ProviderMessageID: "SM124",
	})

	assert.Equal(t, domain.ReasonUnknownSender.Outcome(), rc.Outcome)
	assert.Empty(t, envelope.Messages)
	assert.EqualValues(t, 0, gateway.Calls())

	recs := recorder.records()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	require.NotNil(t, recs[0].ErrorClass)
	assert.Equal(t, domain.ReasonUnknownSender, *recs[0].ErrorClass)
	assert.False(t, recs[0].TenantID.Valid)
}

func TestRoutingEngine_MalformedSender(t *testing.T) {
	gateway := &agentgateway.StubGateway{}
	engine, _, recorder := setupEngineTest(t, gateway)

	envelope, rc := engine.Route(context.Background(), InboundMessage{
		From: "not-a-number", Body: "hi",
	})

	assert.Equal(t, domain.ReasonMalformedSender.Outcome(), rc.Outcome)
	assert.Empty(t, envelope.Messages)

	recs := recorder.records()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].ErrorClass)
	assert.Equal(t, domain.ReasonMalformedSender, *recs[0].ErrorClass)
	assert.Equal(t, "not-a-number", recs[0].PhoneNumber, "raw sender is kept for abuse observability")
}

func TestRoutingEngine_LookupUnavailableIsNotUnknownSender(t *testing.T) {
	gateway := &agentgateway.StubGateway{}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)).Once()

	_, rc := engine.Route(context.Background(), InboundMessage{From: "+15550101001", Body: "hi"})

	assert.Equal(t, domain.ReasonLookupUnavailable.Outcome(), rc.Outcome)
	recs := recorder.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonLookupUnavailable, *recs[0].ErrorClass)
}

func TestRoutingEngine_TenantInactive(t *testing.T) {
	gateway := &agentgateway.StubGateway{}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	tenantID := uuid.New()
	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&domain.TenantProjection{TenantID: tenantID, Active: false}, nil).Once()

	envelope, rc := engine.Route(context.Background(), InboundMessage{From: "+15550101001", Body: "hi"})

	assert.Equal(t, domain.ReasonTenantInactive.Outcome(), rc.Outcome)
	assert.Empty(t, envelope.Messages)
	assert.EqualValues(t, 0, gateway.Calls())

	recs := recorder.records()
	require.Len(t, recs, 1)
	require.True(t, recs[0].TenantID.Valid, "inactive tenant is still attributable")
	assert.Equal(t, tenantID, recs[0].TenantID.UUID)
}

func TestRoutingEngine_TooLongSkipsAgent(t *testing.T) {
	gateway := &agentgateway.StubGateway{Reply: "never sent"}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&domain.TenantProjection{TenantID: uuid.New(), Active: true}, nil).Once()

	envelope, rc := engine.Route(context.Background(), InboundMessage{
		From: "+15550101001",
		Body: strings.Repeat("x", 2000),
	})

	assert.Equal(t, domain.ReasonRejectTooLong.Outcome(), rc.Outcome)
	assert.Empty(t, envelope.Messages)
	assert.EqualValues(t, 0, gateway.Calls(), "agent must not be invoked for rejected content")

	recs := recorder.records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ReasonRejectTooLong, *recs[0].ErrorClass)
}

func TestRoutingEngine_UpstreamErrorStillLogged(t *testing.T) {
	gateway := &agentgateway.StubGateway{Err: errors.New("agent exploded")}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&domain.TenantProjection{TenantID: uuid.New(), Active: true}, nil).Once()

	envelope, rc := engine.Route(context.Background(), InboundMessage{From: "+15550101001", Body: "hi"})

	assert.Equal(t, domain.ReasonUpstreamError.Outcome(), rc.Outcome)
	assert.Empty(t, envelope.Messages)
	assert.EqualValues(t, 1, gateway.Calls())

	recs := recorder.records()
	require.Len(t, recs, 1, "a failed dispatch is still accounted")
	assert.False(t, recs[0].Success)
	assert.Equal(t, domain.ReasonUpstreamError, *recs[0].ErrorClass)
}

func TestRoutingEngine_EveryOutcomeWritesExactlyOneInboundRecord(t *testing.T) {
	cases := []struct {
		name  string
		setup func(resolver *MockTenantResolver, gateway *agentgateway.StubGateway)
		msg   InboundMessage
	}{
		{
			name:  "malformed sender",
			setup: func(r *MockTenantResolver, g *agentgateway.StubGateway) {},
			msg:   InboundMessage{From: "xyz", Body: "hi"},
		},
		{
			name: "unknown sender",
			setup: func(r *MockTenantResolver, g *agentgateway.StubGateway) {
				r.On("Resolve", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
			},
			msg: InboundMessage{From: "+15550101001", Body: "hi"},
		},
		{
			name: "empty body",
			setup: func(r *MockTenantResolver, g *agentgateway.StubGateway) {
				r.On("Resolve", mock.Anything, mock.Anything).
					Return(&domain.TenantProjection{TenantID: uuid.New(), Active: true}, nil)
			},
			msg: InboundMessage{From: "+15550101001", Body: "   "},
		},
		{
			name: "routed",
			setup: func(r *MockTenantResolver, g *agentgateway.StubGateway) {
				g.Reply = "ok"
				r.On("Resolve", mock.Anything, mock.Anything).
					Return(&domain.TenantProjection{TenantID: uuid.New(), Active: true}, nil)
			},
			msg: InboundMessage{From: "+15550101001", Body: "hi"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := &agentgateway.StubGateway{}
			engine, resolver, recorder := setupEngineTest(t, gateway)
			tc.setup(resolver, gateway)

			_, _ = engine.Route(context.Background(), tc.msg)

			var inbound int
			for _, rec := range recorder.records() {
				if rec.Direction == domain.DirectionInbound {
					inbound++
				}
			}
			assert.Equal(t, 1, inbound, "exactly one inbound record per attempt")
		})
	}
}

func TestRoutingEngine_DispatchSurvivesRequestCancellation(t *testing.T) {
	gateway := &agentgateway.StubGateway{Reply: "late but accounted"}
	engine, resolver, recorder := setupEngineTest(t, gateway)

	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&domain.TenantProjection{TenantID: uuid.New(), Active: true}, nil).Once()

	// The provider gave up before the engine dispatched; the attempt still
	// runs to completion so the ledger stays accurate.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	envelope, rc := engine.Route(cancelled, InboundMessage{From: "+15550101001", Body: "hi"})

	assert.Equal(t, domain.OutcomeRouted, rc.Outcome)
	require.Len(t, envelope.Messages, 1)
	assert.Len(t, recorder.records(), 2)
}
