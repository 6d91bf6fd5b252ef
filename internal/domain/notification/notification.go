package notification

import "context"

// Template names a human-facing message kind. Rendering and transport
// live outside the core.
type Template string

const (
	TemplateOrderPlaced      Template = "order_placed"
	TemplatePaymentConfirmed Template = "payment_confirmed"
	TemplateOrderPacked      Template = "order_packed"
	TemplateOrderCancelled   Template = "order_cancelled"
)

// Dispatcher sends a message to a user. Failures must never affect
// order or stock state; callers log and move on.
type Dispatcher interface {
	Send(ctx context.Context, userID string, template Template, data map[string]any) error
}
