package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSClient is the publishing interface components depend on, so tests can
// substitute a double without a running broker.
type NATSClient interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

type natsClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSClient connects to NATS with reconnect handling wired to the
// service logger. natsURL example: "nats://localhost:4222".
func NewNATSClient(natsURL string, logger *slog.Logger, appName string) (NATSClient, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("messagebroker: connecting to NATS at %s: %w", natsURL, err)
	}
	return &natsClient{conn: conn, logger: logger}, nil
}

func (c *natsClient) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("messagebroker: publishing to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection so queued publishes are flushed before the
// process exits.
func (c *natsClient) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("NATS drain failed, closing anyway", "error", err)
			c.conn.Close()
		}
	}
}
