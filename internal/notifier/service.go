// Package notifier turns order events into role-scoped display
// notifications: drink lines go to the bar screen, everything else to
// the kitchen, and a payment clears the table on both.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bartab-service/internal/ordering"
	"bartab-service/internal/redisx"

	kafkax "bartab-service/internal/kafka"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Deduper interface {
	// SeenOrMark reports whether the event was already processed and
	// marks it either way.
	SeenOrMark(ctx context.Context, eventID string) (bool, error)
}

type Sink interface {
	AppendNotification(ctx context.Context, barID string, n ordering.Notification) error
}

type Broadcaster interface {
	Broadcast(role, barID, event string, data any)
}

type Service struct {
	Dedup  Deduper
	Sink   Sink
	Hub    Broadcaster
	Logger *zap.Logger
}

// HandleOrderCreated consumes order.created. Redelivered events are
// dropped by event id, so a consumer restart never duplicates cards on
// the displays.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env ordering.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != ordering.EventOrderCreated {
		return nil
	}

	seen, err := s.Dedup.SeenOrMark(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[ordering.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}

	var drinks, food []ordering.CartLine
	for _, l := range p.Lines {
		if l.Category == ordering.CategoryDrink {
			drinks = append(drinks, l)
		} else {
			food = append(food, l)
		}
	}

	if err := s.notify(ctx, p, ordering.ActionBar, drinks); err != nil {
		return err
	}
	return s.notify(ctx, p, ordering.ActionKitchen, food)
}

func (s *Service) notify(ctx context.Context, p ordering.OrderCreatedPayload, role string, lines []ordering.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	n := ordering.Notification{
		ID:          uuid.NewString(),
		TableNumber: p.TableID,
		Items:       ordering.ItemSummary(lines),
		TotalCents:  p.TotalCents,
		Action:      role,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Sink.AppendNotification(ctx, p.BarID, n); err != nil {
		return err
	}
	s.Hub.Broadcast(role, p.BarID, "new_order_"+role, n)
	s.Logger.Info("order notification",
		zap.String("bar_id", p.BarID),
		zap.String("table", p.TableID),
		zap.String("role", role),
		zap.String("items", n.Items))
	return nil
}

// HandleOrderSubstituted consumes order.substituted and tells both
// displays which line changed, so the kitchen stops preparing the old
// item and the bar sees the corrected total.
func (s *Service) HandleOrderSubstituted(ctx context.Context, m kafkago.Message) error {
	var env ordering.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != ordering.EventOrderItemSubstituted {
		return nil
	}

	seen, err := s.Dedup.SeenOrMark(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[ordering.OrderItemSubstitutedPayload](env.Payload)
	if err != nil {
		return err
	}

	n := ordering.Notification{
		ID:          uuid.NewString(),
		TableNumber: p.TableID,
		Items:       fmt.Sprintf("%dx %s -> %s", p.Qty, p.OldName, p.NewName),
		TotalCents:  p.TotalCents,
		Action:      ordering.ActionSubstitute,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Sink.AppendNotification(ctx, p.BarID, n); err != nil {
		return err
	}
	s.Hub.Broadcast(ordering.ActionBar, p.BarID, "order_substituted", n)
	s.Hub.Broadcast(ordering.ActionKitchen, p.BarID, "order_substituted", n)
	return nil
}

// HandleOrderPaid consumes order.paid and tells both displays to clear
// the table's cards.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env ordering.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != ordering.EventOrderPaid {
		return nil
	}

	seen, err := s.Dedup.SeenOrMark(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[ordering.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	n := ordering.Notification{
		ID:          uuid.NewString(),
		TableNumber: p.TableID,
		TotalCents:  p.TotalCents,
		Action:      ordering.ActionDelete,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Sink.AppendNotification(ctx, p.BarID, n); err != nil {
		return err
	}
	s.Hub.Broadcast(ordering.ActionBar, p.BarID, "order_paid", n)
	s.Hub.Broadcast(ordering.ActionKitchen, p.BarID, "order_paid", n)
	return nil
}

// RedisDeduper marks processed event ids with a TTL'd SETNX.
type RedisDeduper struct {
	RDB     *redis.Client
	Service string
}

func (d *RedisDeduper) SeenOrMark(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, d.Service, eventID)
	ok, err := d.RDB.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
