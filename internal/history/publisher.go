// Package history emits fire-and-forget persist-history notifications for
// dispatched messages. Durable storage of conversation history lives
// elsewhere; this subsystem only signals, requiring no acknowledgement.
package history

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
)

const channelPrefix = "history:"

// Publisher pushes dispatched messages onto a per-tenant Redis channel.
type Publisher struct {
	rdb *goredis.Client
}

func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// MessageDispatched publishes the message envelope. Errors are logged and
// counted, never returned; history persistence is best effort by contract.
func (p *Publisher) MessageDispatched(ctx context.Context, endpoint string, msg *domain.Message) {
	tenantID := msg.TenantID
	if tenantID == "" {
		tenantID = "default"
	}

	data, err := msg.Encode()
	if err != nil {
		metrics.HistoryPublishFailures.Inc()
		slog.Warn("Failed to encode message for history", "message_id", msg.ID, "error", err)
		return
	}

	if err := p.rdb.Publish(ctx, channelPrefix+tenantID, data).Err(); err != nil {
		metrics.HistoryPublishFailures.Inc()
		slog.Warn("Failed to publish history notification",
			"endpoint", endpoint,
			"tenant_id", tenantID,
			"message_id", msg.ID,
			"error", err,
		)
	}
}
