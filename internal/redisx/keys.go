package redisx

import "time"

const (
	// Idempotency fast-path untuk checkout: idem:checkout:{external_id} -> order_id.
	// DB tetap jadi kebenaran; ini cuma shortcut.
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache status order: order_status:{order_id} -> JSON ringkas
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
