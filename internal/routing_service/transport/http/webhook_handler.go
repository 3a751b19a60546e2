package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pocketline/smsrouter/internal/routing_service/app"
	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// WebhookHandler is the externally reachable boundary for provider
// callbacks. It authenticates the payload, hands the message to the routing
// engine synchronously, and writes the engine's envelope back as the
// webhook response.
type WebhookHandler struct {
	engine    *app.RoutingEngine
	logger    *slog.Logger
	validate  *validator.Validate
	authToken string
	publicURL string
}

func NewWebhookHandler(engine *app.RoutingEngine, logger *slog.Logger, validate *validator.Validate, authToken, publicURL string) *WebhookHandler {
	return &WebhookHandler{
		engine:    engine,
		logger:    logger.With("handler", "webhook"),
		validate:  validate,
		authToken: authToken,
		publicURL: publicURL,
	}
}

// Routes mounts the webhook and health endpoints on a chi router with the
// standard middleware stack.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Post("/webhooks/sms/inbound", h.HandleInboundSMS)
	r.Get("/healthz", h.HandleHealthz)
	return r
}

// HandleInboundSMS processes one provider callback. Provenance failures are
// rejected here, before the routing engine runs, and produce no usage
// record: an unauthenticated payload is not attributable to any tenant.
func (h *WebhookHandler) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "unparseable callback form", "error", err)
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}

	if !validSignature(h.authToken, h.publicURL, r.PostForm, r.Header.Get(signatureHeader)) {
		logger.WarnContext(ctx, "callback signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	req := inboundRequestFromForm(r)
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "callback failed validation", "error", err)
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	envelope, rc := h.engine.Route(ctx, app.InboundMessage{
		From:              req.From,
		To:                req.To,
		Body:              req.Body,
		ProviderMessageID: req.MessageSid,
	})

	h.writeEnvelope(w, logger, envelope, rc.Outcome)
}

// writeEnvelope maps the routing outcome onto the provider-facing status.
// Rejections are served a valid empty envelope with 200 so probers of the
// shared number learn nothing, with two exceptions: a sender number that can
// never parse gets 400, and a transient lookup failure gets 503 so the
// provider retries delivery.
func (h *WebhookHandler) writeEnvelope(w http.ResponseWriter, logger *slog.Logger, envelope app.Envelope, outcome domain.Outcome) {
	switch outcome {
	case domain.ReasonMalformedSender.Outcome():
		http.Error(w, "unroutable sender number", http.StatusBadRequest)
		return
	case domain.ReasonLookupUnavailable.Outcome():
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	body, err := envelope.Render()
	if err != nil {
		logger.Error("envelope render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", envelope.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleHealthz is the liveness probe.
func (h *WebhookHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
