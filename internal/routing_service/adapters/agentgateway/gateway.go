// Package agentgateway adapts the external conversational agent service to
// the routing engine's needs. The agent itself (prompting, tool use, model
// selection) is out of scope here; this package only carries a tenant-scoped
// message across the wire and brings a reply text back.
package agentgateway

import (
	"context"

	"github.com/google/uuid"
)

// Gateway invokes the conversational agent inside the given tenant's
// isolated context. Implementations must honor ctx deadlines; the routing
// engine maps any returned error onto its upstream-error classification.
type Gateway interface {
	Run(ctx context.Context, tenantID uuid.UUID, message string) (string, error)
}
