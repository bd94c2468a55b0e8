// Package session holds the server-side tab state the mobile client
// reads back between screens: submitted rounds, the pending set awaiting
// payment, per-bar history and notification lists, and cart hashes. Keys
// mirror the client's storage layout (see redisx).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bartab-service/internal/ordering"
	"bartab-service/internal/redisx"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("order session not found")
	ErrNoPending       = errors.New("no pending orders for table")
)

// OrderSession scopes one visit: minted on the first scan of a table QR,
// it carries the context every later screen needs.
type OrderSession struct {
	ID        string    `json:"orderTotal_id"`
	UserID    string    `json:"user_id"`
	BarID     string    `json:"bar_id"`
	TableID   string    `json:"table_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingSet is the collection of submitted orders awaiting payment for
// one (bar, table) pair.
type PendingSet struct {
	Orders      []ordering.Order `json:"orders"`
	TotalCents  int              `json:"total_cents"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

type Store struct {
	RDB        *redis.Client
	SessionTTL time.Duration
}

func (s *Store) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return redisx.TTLOrderSession
}

func (s *Store) CreateOrderSession(ctx context.Context, userID, barID, tableID string) (OrderSession, error) {
	sess := OrderSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		BarID:     barID,
		TableID:   tableID,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return OrderSession{}, err
	}
	key := fmt.Sprintf(redisx.KeyOrderSession, sess.ID)
	if err := s.RDB.Set(ctx, key, b, s.sessionTTL()).Err(); err != nil {
		return OrderSession{}, err
	}
	return sess, nil
}

func (s *Store) GetOrderSession(ctx context.Context, id string) (OrderSession, error) {
	key := fmt.Sprintf(redisx.KeyOrderSession, id)
	b, err := s.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return OrderSession{}, ErrSessionNotFound
	}
	if err != nil {
		return OrderSession{}, err
	}
	var sess OrderSession
	if err := json.Unmarshal(b, &sess); err != nil {
		return OrderSession{}, err
	}
	return sess, nil
}

// CartQuantities returns the session's product_id -> qty hash.
func (s *Store) CartQuantities(ctx context.Context, sessionID string) (map[string]int, error) {
	key := fmt.Sprintf(redisx.KeyCart, sessionID)
	raw, err := s.RDB.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[id] = n
	}
	return out, nil
}

func (s *Store) SetCartQuantity(ctx context.Context, sessionID, productID string, qty int) error {
	key := fmt.Sprintf(redisx.KeyCart, sessionID)
	if qty <= 0 {
		return s.RDB.HDel(ctx, key, productID).Err()
	}
	if err := s.RDB.HSet(ctx, key, productID, qty).Err(); err != nil {
		return err
	}
	return s.RDB.Expire(ctx, key, redisx.TTLCart).Err()
}

func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(redisx.KeyCart, sessionID)).Err()
}

// AppendExistingOrder adds a submitted round to the table's tab.
func (s *Store) AppendExistingOrder(ctx context.Context, barID, tableID string, o ordering.Order) error {
	key := fmt.Sprintf(redisx.KeyExistingOrders, barID, tableID)
	return redisx.WithLock(ctx, s.RDB, key, func(ctx context.Context) error {
		var orders []ordering.Order
		if err := s.getJSON(ctx, key, &orders); err != nil {
			return err
		}
		orders = append(orders, o)
		return s.setJSON(ctx, key, orders)
	})
}

func (s *Store) ExistingOrders(ctx context.Context, barID, tableID string) ([]ordering.Order, error) {
	var orders []ordering.Order
	key := fmt.Sprintf(redisx.KeyExistingOrders, barID, tableID)
	if err := s.getJSON(ctx, key, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ConfirmPending snapshots the table's submitted rounds into the pending
// set awaiting payment. The total is recomputed from line subtotals at
// confirmation time.
func (s *Store) ConfirmPending(ctx context.Context, barID, tableID string) (PendingSet, error) {
	existingKey := fmt.Sprintf(redisx.KeyExistingOrders, barID, tableID)
	pendingKey := fmt.Sprintf(redisx.KeyPendingOrders, barID, tableID)

	var set PendingSet
	err := redisx.WithLock(ctx, s.RDB, pendingKey, func(ctx context.Context) error {
		var orders []ordering.Order
		if err := s.getJSON(ctx, existingKey, &orders); err != nil {
			return err
		}
		if len(orders) == 0 {
			return ErrNoPending
		}
		total := 0
		for _, o := range orders {
			total += ordering.LinesTotal(o.Lines)
		}
		set = PendingSet{Orders: orders, TotalCents: total, ConfirmedAt: time.Now().UTC()}
		return s.setJSON(ctx, pendingKey, set)
	})
	if err != nil {
		return PendingSet{}, err
	}
	return set, nil
}

// TakePending consumes the pending set exactly once: the read and the
// deletes happen under the key's lock, so a second confirmation finds
// nothing.
func (s *Store) TakePending(ctx context.Context, barID, tableID string) (PendingSet, bool, error) {
	existingKey := fmt.Sprintf(redisx.KeyExistingOrders, barID, tableID)
	pendingKey := fmt.Sprintf(redisx.KeyPendingOrders, barID, tableID)

	var (
		set   PendingSet
		found bool
	)
	err := redisx.WithLock(ctx, s.RDB, pendingKey, func(ctx context.Context) error {
		b, err := s.RDB.Get(ctx, pendingKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, &set); err != nil {
			return err
		}
		found = true
		return s.RDB.Del(ctx, pendingKey, existingKey).Err()
	})
	if err != nil {
		return PendingSet{}, false, err
	}
	return set, found, nil
}

func (s *Store) AppendCompleted(ctx context.Context, barID string, rec ordering.CompletedOrder) error {
	key := fmt.Sprintf(redisx.KeyCompletedOrders, barID)
	return redisx.WithLock(ctx, s.RDB, key, func(ctx context.Context) error {
		var recs []ordering.CompletedOrder
		if err := s.getJSON(ctx, key, &recs); err != nil {
			return err
		}
		recs = append(recs, rec)
		return s.setJSON(ctx, key, recs)
	})
}

func (s *Store) CompletedOrders(ctx context.Context, barID string) ([]ordering.CompletedOrder, error) {
	var recs []ordering.CompletedOrder
	key := fmt.Sprintf(redisx.KeyCompletedOrders, barID)
	if err := s.getJSON(ctx, key, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) AppendNotification(ctx context.Context, barID string, n ordering.Notification) error {
	key := fmt.Sprintf(redisx.KeyNotifications, barID)
	return redisx.WithLock(ctx, s.RDB, key, func(ctx context.Context) error {
		var list []ordering.Notification
		if err := s.getJSON(ctx, key, &list); err != nil {
			return err
		}
		list = append(list, n)
		return s.setJSON(ctx, key, list)
	})
}

func (s *Store) Notifications(ctx context.Context, barID string) ([]ordering.Notification, error) {
	var list []ordering.Notification
	key := fmt.Sprintf(redisx.KeyNotifications, barID)
	if err := s.getJSON(ctx, key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	b, err := s.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.RDB.Set(ctx, key, b, 0).Err()
}
