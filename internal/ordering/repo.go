package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bartab-service/internal/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmptyOrder    = errors.New("order has no products")
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderClosed   = errors.New("order already finalized")
	ErrBarNotFound   = errors.New("bar not found")
)

// OrderDraft is one submitted round of cart selections.
type OrderDraft struct {
	BarID        string     `json:"bar_id"`
	TableID      string     `json:"table_id"`
	UserID       string     `json:"user_id"`
	GroupID      string     `json:"group_id,omitempty"`
	SpecialNotes string     `json:"special_notes,omitempty"`
	Lines        []CartLine `json:"products"`
	TraceID      string     `json:"-"`
}

type Repo struct {
	DB      *pgxpool.Pool
	Outbox  *outbox.Store
	Service string
}

// CreateOrder persists the round and its OrderCreated event in one
// transaction. Prices, names and categories come from the products
// table, never from the client; quantities are clamped to the category
// cap. An empty draft is rejected before any write.
func (r *Repo) CreateOrder(ctx context.Context, draft OrderDraft) (Order, error) {
	if len(draft.Lines) == 0 {
		return Order{}, ErrEmptyOrder
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]any, 0, len(draft.Lines)+1)
	params := ""
	for i, l := range draft.Lines {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		ids = append(ids, l.ProductID)
	}
	ids = append(ids, draft.BarID)
	rows, err := tx.Query(ctx, `
		SELECT id, name, price_cents, category FROM products
		WHERE id IN (`+params+`) AND bar_id = $`+fmt.Sprint(len(ids)), ids...)
	if err != nil {
		return Order{}, err
	}
	catalog := map[string]Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Category); err != nil {
			rows.Close()
			return Order{}, err
		}
		catalog[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}

	total := 0
	lines := make([]CartLine, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		p, ok := catalog[l.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("%w: %s", ErrUnknownProduct, l.ProductID)
		}
		qty := l.Qty
		if qty <= 0 {
			continue
		}
		if limit := CategoryCap(p.Category); qty > limit {
			qty = limit
		}
		lines = append(lines, CartLine{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Qty:        qty,
			Category:   p.Category,
		})
		total += p.PriceCents * qty
	}
	if len(lines) == 0 {
		return Order{}, ErrEmptyOrder
	}

	o := Order{
		ID:           uuid.NewString(),
		BarID:        draft.BarID,
		TableID:      draft.TableID,
		UserID:       draft.UserID,
		GroupID:      draft.GroupID,
		SpecialNotes: draft.SpecialNotes,
		Status:       StatusSubmitted,
		TotalCents:   total,
		Lines:        lines,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, bar_id, table_id, user_id, group_id, special_notes, status, total_cents, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		o.ID, o.BarID, o.TableID, o.UserID, o.GroupID, o.SpecialNotes, string(o.Status), o.TotalCents, o.CreatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, l.ProductID, l.Qty, l.PriceCents,
		); err != nil {
			return Order{}, err
		}
	}

	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		TraceID:       draft.TraceID,
		CorrelationID: o.ID,
	}
	ev.Payload, err = json.Marshal(OrderCreatedPayload{
		OrderID:    o.ID,
		BarID:      o.BarID,
		TableID:    o.TableID,
		UserID:     o.UserID,
		GroupID:    o.GroupID,
		Lines:      o.Lines,
		TotalCents: o.TotalCents,
	})
	if err != nil {
		return Order{}, err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return Order{}, err
	}
	if err := r.Outbox.Enqueue(ctx, tx, TopicOrderCreated, PartitionKey(o.ID), value); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var group *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, bar_id, table_id, user_id, group_id, COALESCE(special_notes, ''), status, total_cents, created_at
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.BarID, &o.TableID, &o.UserID, &group, &o.SpecialNotes, &o.Status, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if group != nil {
		o.GroupID = *group
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.qty, oi.price_cents, p.category
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Qty, &l.PriceCents, &l.Category); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *Repo) ListBars(ctx context.Context) ([]Bar, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, address, rating, created_at FROM bars ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Rating, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) GetBar(ctx context.Context, barID string) (Bar, error) {
	var b Bar
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, address, rating, created_at FROM bars WHERE id = $1`, barID).
		Scan(&b.ID, &b.Name, &b.Address, &b.Rating, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bar{}, ErrBarNotFound
	}
	if err != nil {
		return Bar{}, err
	}
	return b, nil
}

func (r *Repo) ListProducts(ctx context.Context, barID string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, bar_id, name, price_cents, category
		FROM products WHERE bar_id = $1 ORDER BY name`, barID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BarID, &p.Name, &p.PriceCents, &p.Category); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// transitionOrders moves every order for the table from one status to
// the next, refusing moves the transition table forbids.
func transitionOrders(ctx context.Context, db execer, barID, tableID string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal order transition %s -> %s", from, to)
	}
	_, err := db.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE bar_id = $2 AND table_id = $3 AND status = $4`,
		string(to), barID, tableID, string(from))
	return err
}

// MarkPendingPayment freezes the table's submitted orders for payment.
func (r *Repo) MarkPendingPayment(ctx context.Context, barID, tableID string) error {
	return transitionOrders(ctx, r.DB, barID, tableID, StatusSubmitted, StatusPendingPayment)
}

// CompletePayment finalizes the table's frozen orders and records the
// paid event, all in one transaction. Only orders already moved to
// PENDING_PAYMENT by a confirmation are completed.
func (r *Repo) CompletePayment(ctx context.Context, rec CompletedOrder, tableID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := transitionOrders(ctx, tx, rec.BarID, tableID, StatusPendingPayment, StatusCompleted); err != nil {
		return err
	}

	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: rec.ID,
	}
	ev.Payload, err = json.Marshal(OrderPaidPayload{
		CompletedID:   rec.ID,
		BarID:         rec.BarID,
		TableID:       tableID,
		TotalCents:    rec.TotalCents,
		PaymentMethod: rec.PaymentMethod,
	})
	if err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.Outbox.Enqueue(ctx, tx, TopicOrderPaid, PartitionKey(rec.ID), value); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SubstituteItem swaps one unavailable product on an open order for a
// replacement from the same bar's catalog. The line keeps its quantity,
// takes the substitute's price, and the order total is recomputed; the
// substitution event rides the outbox like every other change.
func (r *Repo) SubstituteItem(ctx context.Context, orderID, productID, substituteID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		barID, tableID string
		status         Status
	)
	err = tx.QueryRow(ctx, `
		SELECT bar_id, table_id, status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&barID, &tableID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if status == StatusCompleted || status == StatusCancelled {
		return Order{}, ErrOrderClosed
	}

	var qty int
	var oldName string
	err = tx.QueryRow(ctx, `
		SELECT oi.qty, p.name
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 AND oi.product_id = $2`, orderID, productID).
		Scan(&qty, &oldName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if err != nil {
		return Order{}, err
	}

	var sub Product
	err = tx.QueryRow(ctx, `
		SELECT id, name, price_cents, category FROM products
		WHERE id = $1 AND bar_id = $2`, substituteID, barID).
		Scan(&sub.ID, &sub.Name, &sub.PriceCents, &sub.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownProduct, substituteID)
	}
	if err != nil {
		return Order{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_items SET product_id = $1, price_cents = $2
		WHERE order_id = $3 AND product_id = $4`,
		sub.ID, sub.PriceCents, orderID, productID)
	if err != nil {
		return Order{}, err
	}
	var total int
	err = tx.QueryRow(ctx, `
		UPDATE orders SET total_cents = (
			SELECT COALESCE(SUM(qty * price_cents), 0) FROM order_items WHERE order_id = $1
		) WHERE id = $1
		RETURNING total_cents`, orderID).Scan(&total)
	if err != nil {
		return Order{}, err
	}

	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderItemSubstituted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: orderID,
	}
	ev.Payload, err = json.Marshal(OrderItemSubstitutedPayload{
		OrderID:      orderID,
		BarID:        barID,
		TableID:      tableID,
		OldProductID: productID,
		OldName:      oldName,
		NewProductID: sub.ID,
		NewName:      sub.Name,
		Qty:          qty,
		TotalCents:   total,
	})
	if err != nil {
		return Order{}, err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return Order{}, err
	}
	if err := r.Outbox.Enqueue(ctx, tx, TopicOrderSubstituted, PartitionKey(orderID), value); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return r.GetOrder(ctx, orderID)
}

// History returns the bar's completed orders with their items, newest
// first (the shape the history screen consumes).
func (r *Repo) History(ctx context.Context, barID string) ([]HistoryOrder, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.created_at, o.total_cents, o.status, p.name, oi.qty, oi.price_cents
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id
		WHERE o.bar_id = $1 AND o.status = $2
		ORDER BY o.created_at DESC, o.id`, barID, string(StatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryOrder
	index := map[string]int{}
	for rows.Next() {
		var (
			h    HistoryOrder
			item HistoryItem
		)
		if err := rows.Scan(&h.ID, &h.Date, &h.TotalCents, &h.Status, &item.Name, &item.Qty, &item.PriceCents); err != nil {
			return nil, err
		}
		i, ok := index[h.ID]
		if !ok {
			index[h.ID] = len(out)
			h.Items = []HistoryItem{item}
			out = append(out, h)
			continue
		}
		out[i].Items = append(out[i].Items, item)
	}
	return out, rows.Err()
}
