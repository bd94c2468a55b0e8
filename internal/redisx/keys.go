package redisx

import "time"

// Key formats follow the mobile client's storage layout:
// <purpose>_<barId>_<tableId> for per-table state, <purpose>_<barId> for
// per-bar state. Values are JSON-serialized arrays.
const (
	// Orders submitted this round, not yet confirmed for payment.
	KeyExistingOrders = "existingOrders_%s_%s"

	// Confirmed orders awaiting payment for a (bar, table) pair.
	KeyPendingOrders = "pendingOrders_%s_%s"

	// Per-bar completed order history.
	KeyCompletedOrders = "completedOrders_%s"

	// Per-bar notification list for kitchen/bar displays.
	KeyNotifications = "notifications_%s"

	// Cart quantities per order session: cart_{orderTotal_id} (hash product_id -> qty).
	KeyCart = "cart_%s"

	// Order session context: ordersession:{orderTotal_id}
	KeyOrderSession = "ordersession:%s"

	// Mutex guarding read-modify-write on a storage key: lock:{key}
	KeyLock = "lock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderSession = 4 * time.Hour
	TTLCart         = 4 * time.Hour
	TTLLock         = 5 * time.Second
	TTLDedup        = 48 * time.Hour
)
