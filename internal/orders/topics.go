package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderCanceled  = "order.canceled"
	TopicOrderCompleted = "order.completed"
	TopicOrderRefunded  = "order.refunded"
	TopicNotifyDispatch = "notify.dispatch"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
