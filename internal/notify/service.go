// Package notify consumes order lifecycle events: it keeps the redis order
// status cache warm and records notification intents. Restock compensation
// is NOT handled here; it happens synchronously inside the return
// transaction.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/averith/go-shop-backend/internal/kafka"
	"github.com/averith/go-shop-backend/internal/logger"
	"github.com/averith/go-shop-backend/internal/orders"
	"github.com/averith/go-shop-backend/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent is the consumer handler for all order topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id; consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, string(orders.StatusPending))
		logger.Log.Info("order confirmation notification",
			zap.String("order_id", p.OrderID),
			zap.String("user_id", p.UserID),
			zap.Int("total_cents", p.TotalCents))
	case orders.EventStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, p.Status)
		logger.Log.Info("order status notification",
			zap.String("order_id", p.OrderID),
			zap.String("status", p.Status))
	case orders.EventOrderReturned:
		p, err := kafkax.UnwrapPayload[orders.OrderReturnedPayload](env.Payload)
		if err != nil {
			return err
		}
		logger.Log.Info("order return notification",
			zap.String("order_id", p.OrderID),
			zap.String("reason", p.Reason),
			zap.Int("restocked_items", len(p.Items)))
	}
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID, status string) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]string{"status": status})
	_ = s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
