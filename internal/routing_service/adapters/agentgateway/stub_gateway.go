package agentgateway

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// StubGateway is a canned-reply Gateway for tests and local development. It
// counts invocations so tests can assert the agent was (or was not) called.
type StubGateway struct {
	Reply string
	Err   error

	calls atomic.Int64
}

func (s *StubGateway) Run(ctx context.Context, tenantID uuid.UUID, message string) (string, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// Calls reports how many times Run was invoked.
func (s *StubGateway) Calls() int64 {
	return s.calls.Load()
}
