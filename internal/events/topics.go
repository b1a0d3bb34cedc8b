package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderPaid     = "order.paid"
	TopicStockLow      = "stock.low"
	TopicVoucherUsed   = "voucher.used"
	TopicEmailDeferred = "email.deferred"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderPaid,
		TopicStockLow,
		TopicVoucherUsed,
		TopicEmailDeferred,
	}
}
