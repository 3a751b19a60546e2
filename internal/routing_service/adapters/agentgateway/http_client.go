package agentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPGateway calls the agent service over HTTP with a JSON body. The
// injected client's timeout is a backstop; per-call deadlines come from the
// routing engine's context.
type HTTPGateway struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewHTTPGateway(logger *slog.Logger, baseURL string, httpClient *http.Client) *HTTPGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{
		logger:     logger.With("component", "agent_gateway"),
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type runRequest struct {
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
}

type runResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Run posts the sanitized message into the tenant's agent context and
// returns the reply text. A reply may legitimately be empty: the agent can
// choose to acknowledge silently.
func (g *HTTPGateway) Run(ctx context.Context, tenantID uuid.UUID, message string) (string, error) {
	payload, err := json.Marshal(runRequest{TenantID: tenantID.String(), Message: message})
	if err != nil {
		return "", fmt.Errorf("agentgateway: marshaling run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("agentgateway: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agentgateway: calling agent service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("agentgateway: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)
		g.logger.WarnContext(ctx, "agent service returned error",
			"status", resp.StatusCode, "tenant_id", tenantID, "error", errResp.Error)
		return "", fmt.Errorf("agentgateway: agent service status %d: %s", resp.StatusCode, errResp.Error)
	}

	var runResp runResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		return "", fmt.Errorf("agentgateway: decoding response: %w", err)
	}

	g.logger.DebugContext(ctx, "agent run completed",
		"tenant_id", tenantID, "duration_ms", time.Since(start).Milliseconds(), "reply_len", len(runResp.Reply))
	return runResp.Reply, nil
}
