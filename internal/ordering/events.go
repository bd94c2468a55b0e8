package ordering

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderPaid            = "OrderPaid"
	EventOrderItemSubstituted = "OrderItemSubstituted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	BarID      string     `json:"bar_id"`
	TableID    string     `json:"table_id"`
	UserID     string     `json:"user_id"`
	GroupID    string     `json:"group_id,omitempty"`
	Lines      []CartLine `json:"items"`
	TotalCents int        `json:"total_cents"`
}

type OrderItemSubstitutedPayload struct {
	OrderID      string `json:"order_id"`
	BarID        string `json:"bar_id"`
	TableID      string `json:"table_id"`
	OldProductID string `json:"old_product_id"`
	OldName      string `json:"old_name"`
	NewProductID string `json:"new_product_id"`
	NewName      string `json:"new_name"`
	Qty          int    `json:"quantity"`
	TotalCents   int    `json:"total_cents"`
}

type OrderPaidPayload struct {
	CompletedID   string `json:"completed_id"`
	BarID         string `json:"bar_id"`
	TableID       string `json:"table_id"`
	TotalCents    int    `json:"total_cents"`
	PaymentMethod string `json:"payment_method"`
}

// ItemSummary renders cart lines the way displays show them:
// "2x Mojito, 1x Tacos al Pastor".
func ItemSummary(lines []CartLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Qty, l.Name))
	}
	return strings.Join(parts, ", ")
}
