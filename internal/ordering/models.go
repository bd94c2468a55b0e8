package ordering

import "time"

type Bar struct {
	ID        string    `json:"bar_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID         string `json:"product_id"`
	BarID      string `json:"bar_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Category   string `json:"category"` // Bebida | Comida
}

// CartLine is one non-zero cart entry. Lines exist only between the
// first increment and order submission.
type CartLine struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Qty        int    `json:"quantity"`
	Category   string `json:"category"`
}

type Order struct {
	ID           string     `json:"order_id"`
	BarID        string     `json:"bar_id"`
	TableID      string     `json:"table_id"`
	UserID       string     `json:"user_id"`
	GroupID      string     `json:"group_id,omitempty"`
	SpecialNotes string     `json:"special_notes,omitempty"`
	Status       Status     `json:"status"`
	TotalCents   int        `json:"total_cents"`
	Lines        []CartLine `json:"products"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Group is a shared-tab context tying multiple devices to one table's
// order. Membership beyond the creator is tracked server-side only.
type Group struct {
	ID            string    `json:"group_id"`
	Name          string    `json:"name"`
	CreatorUserID string    `json:"creator_user_id"`
	BarID         string    `json:"bar_id"`
	TableID       string    `json:"table_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type CompletedOrder struct {
	ID            string    `json:"id"`
	BarID         string    `json:"bar_id"`
	Date          time.Time `json:"date"`
	TotalCents    int       `json:"total_cents"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
}

const (
	ActionKitchen    = "kitchen"
	ActionBar        = "bar"
	ActionDelete     = "delete"
	ActionSubstitute = "substitute"
)

// Notification is what role displays render: table, a human-readable
// item summary, and the round's total.
type Notification struct {
	ID          string    `json:"id"`
	TableNumber string    `json:"tableNumber"`
	Items       string    `json:"items"`
	TotalCents  int       `json:"total"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

type HistoryItem struct {
	Name       string `json:"product_name"`
	Qty        int    `json:"quantity"`
	PriceCents int    `json:"unit_price_cents"`
}

type HistoryOrder struct {
	ID         string        `json:"ordertotal_id"`
	Date       time.Time     `json:"creation_date"`
	TotalCents int           `json:"total_cents"`
	Status     string        `json:"status"`
	Items      []HistoryItem `json:"products"`
}
