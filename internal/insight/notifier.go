package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Event channels consumed by the socket gateway. Each is suffixed with the
// uid so the gateway can route to the user's connections.
const (
	ChannelUserData       = "insight_user_data"
	ChannelContradictions = "insight_contradictions"
)

// Publisher is the slice of the redis client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Notifier pushes post-turn state to subscribed clients over redis pub/sub.
type Notifier struct {
	client Publisher
	logger *log.Logger
	events otelmetric.Int64Counter
}

// NewNotifier constructs a Notifier.
func NewNotifier(client Publisher, logger *log.Logger) *Notifier {
	n := &Notifier{client: client, logger: logger}
	meter := otel.Meter("aide/insight")
	var err error
	if n.events, err = meter.Int64Counter("insight_events_published_total"); err != nil {
		logger.Printf("warn: create events counter failed: %v", err)
	}
	return n
}

// Notify publishes the full projection on insight_user_data and, when the
// review queue is non-empty, the queue on insight_contradictions.
func (n *Notifier) Notify(ctx context.Context, uid string, proj Projection) error {
	if err := n.publish(ctx, ChannelUserData, uid, proj); err != nil {
		return err
	}
	if len(proj.ContradictionReviewQueue) == 0 {
		return nil
	}
	payload := map[string]interface{}{"review_queue": proj.ContradictionReviewQueue}
	return n.publish(ctx, ChannelContradictions, uid, payload)
}

func (n *Notifier) publish(ctx context.Context, channel, uid string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channel, err)
	}
	if err := n.client.Publish(ctx, channel+":"+uid, raw).Err(); err != nil {
		return fmt.Errorf("publish %s for %s: %w", channel, uid, err)
	}
	if n.events != nil {
		n.events.Add(ctx, 1)
	}
	return nil
}
