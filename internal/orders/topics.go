package orders

const (
	TopicOrderPlaced   = "order.placed"
	TopicStatusChanged = "order.status_changed"
	TopicOrderReturned = "order.returned"
)

// PartitionKey keys messages by order id so all events for one order stay
// ordered within a partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
