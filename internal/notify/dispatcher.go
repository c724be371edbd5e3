package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/Yasser1728/tec/internal/kafka"
	"github.com/Yasser1728/tec/internal/orders"
	"github.com/Yasser1728/tec/internal/redisx"
)

// Dispatcher consumes notify.dispatch and delivers queued notifications.
// Real channels (email/push) are out of scope; delivery here is the log
// channel plus the is_sent flip. Redelivery is handled by the consumer group,
// duplicates by the redis dedup key.
type Dispatcher struct {
	Store       *Service
	Redis       *redis.Client
	ServiceName string
}

func (d *Dispatcher) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventNotification {
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, d.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, d.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.NotificationPayload](env.Payload)
	if err != nil {
		return err
	}

	log.Printf("notify: deliver [%s] to %s: %s", p.Kind, p.UserID, p.Message)
	if err := d.Store.MarkSent(ctx, p.NotificationID); err != nil {
		return err // not committed; akan dicoba lagi
	}
	_ = d.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
