package notify

import (
	"context"
	"time"

	"github.com/threadline/fulfillment/internal/domain/event"
	"github.com/threadline/fulfillment/internal/domain/notification"
	domorder "github.com/threadline/fulfillment/internal/domain/order"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

const workerService = "notification_worker"

// Worker bridges order lifecycle events to the notification dispatcher.
// Dispatch failures are logged and swallowed: notifications never
// affect order or stock state.
type Worker struct {
	subscriber event.Subscriber
	dispatcher notification.Dispatcher

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func New(subscriber event.Subscriber, dispatcher notification.Dispatcher, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:   subscriber,
		dispatcher:   dispatcher,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.dispatcher == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.PaymentConfirmedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.OrderPackedEvent{}.EventName(), w.handle)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handle)
}

func (w *Worker) handle(ctx context.Context, e event.Event) error {
	const useCase = "notify.dispatch"

	userID, template, data := describe(e)
	if template == "" {
		w.count(useCase, "ignored")
		return nil
	}

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
		observability.F("user_id", userID),
	)

	start := time.Now()
	outcome := "success"
	if err := w.dispatcher.Send(ctx, userID, template, data); err != nil {
		// Swallowed on purpose; returning the error would only make the
		// bus log it a second time.
		outcome = "error"
		logger.Warn("notification_dispatch_failed", observability.F("error", err.Error()))
	}

	w.count(useCase, outcome)
	w.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("use_case", useCase),
	)
	return nil
}

func describe(e event.Event) (userID string, template notification.Template, data map[string]any) {
	switch evt := e.(type) {
	case domorder.OrderPlacedEvent:
		return evt.UserID, notification.TemplateOrderPlaced, map[string]any{
			"order_id": evt.OrderID,
			"sequence": evt.Sequence,
			"amount":   evt.Amount,
			"method":   string(evt.Method),
		}
	case domorder.PaymentConfirmedEvent:
		return evt.UserID, notification.TemplatePaymentConfirmed, map[string]any{
			"order_id": evt.OrderID,
			"amount":   evt.Amount,
		}
	case domorder.OrderPackedEvent:
		return evt.UserID, notification.TemplateOrderPacked, map[string]any{
			"order_id": evt.OrderID,
		}
	case domorder.OrderCancelledEvent:
		return evt.UserID, notification.TemplateOrderCancelled, map[string]any{
			"order_id": evt.OrderID,
			"reason":   evt.Reason,
		}
	}
	return "", "", nil
}

func (w *Worker) count(useCase, outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
