// Package notify persists user notifications and queues them for delivery.
// Delivery is out-of-band (cmd/worker); a failed send stays queued.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/Yasser1728/tec/internal/kafka"
	"github.com/Yasser1728/tec/internal/orders"
)

const (
	KindOrder     = "ORDER"
	KindLoyalty   = "LOYALTY"
	KindAccount   = "ACCOUNT"
	KindPromotion = "PROMOTION"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	DB       *pgxpool.Pool
	Producer Publisher
	Name     string
}

// Notify stores the notification row and enqueues it on notify.dispatch.
// The row is the source of truth; the queue only drives delivery.
func (s *Service) Notify(ctx context.Context, userID, message, kind, relatedID string) error {
	id := uuid.NewString()
	var related any
	if relatedID != "" {
		related = relatedID
	}
	if _, err := s.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, message, kind, related_id)
		VALUES ($1, $2, $3, $4, $5)`,
		id, userID, message, kind, related); err != nil {
		return err
	}
	if s.Producer != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventNotification,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      s.Name,
			CorrelationID: relatedID,
			Payload: kafkax.MustMarshal(orders.NotificationPayload{
				NotificationID: id,
				UserID:         userID,
				Kind:           kind,
				Message:        message,
				RelatedID:      relatedID,
			}),
		}
		s.Producer.Publish(orders.TopicNotifyDispatch, []byte(userID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventNotification)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return nil
}

// MarkSent flips is_sent after a successful delivery.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE notifications SET is_sent=true WHERE id=$1`, id)
	return err
}
