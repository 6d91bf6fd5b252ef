package order

import (
	"context"
	"fmt"
	"time"

	"github.com/threadline/fulfillment/internal/application/stock"
	"github.com/threadline/fulfillment/internal/domain/catalog"
	domain "github.com/threadline/fulfillment/internal/domain/order"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
	"github.com/threadline/fulfillment/internal/pkg/money"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// PlaceOrder runs the checkout saga: validate stock, price the items,
// persist the order, book a shipment (best-effort), commit stock for
// collect-on-delivery, clear the cart, notify. Deferred payment modes
// stop after persisting and hand back the remote payment handle; their
// stock commits at confirmation.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCasePlace))

	ctx, span := s.deps.Tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlace),
		attribute.String("order.user_id", in.UserID),
		attribute.Int("order.item_count", len(in.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCasePlace),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlace),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if in.UserID == "" {
		outcome, statusText = "error", "USER_ID_REQUIRED"
		return nil, newValidation("user id is required")
	}
	if len(in.Items) == 0 {
		outcome, statusText = "error", "ITEMS_REQUIRED"
		return nil, newValidation("at least one item is required")
	}
	method, merr := domain.ParsePaymentMethod(in.PaymentMethod)
	if merr != nil {
		outcome, statusText = "error", "PAYMENT_METHOD_INVALID"
		return nil, newValidation("unknown payment method")
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	lines, lerr := parseLines(in.Items)
	if lerr != nil {
		outcome, statusText = "error", "ITEMS_INVALID"
		return nil, lerr
	}

	// Optimistic pre-check; the commit below remains the authority.
	if err = s.deps.Ledger.Validate(ctx, lines); err != nil {
		outcome, statusText = "error", "INSUFFICIENT_STOCK"
		return nil, err
	}

	items, amount, perr := s.priceItems(ctx, lines)
	if perr != nil {
		outcome, statusText = "error", "PRICING_FAILED"
		return nil, perr
	}

	seq, cerr := s.deps.Counter.Next(ctx, domain.SequenceSeries)
	if cerr != nil {
		outcome, statusText = "error", "SEQUENCE_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, cerr)
	}

	entity, derr := domain.New(s.deps.IDGen.NewID(), seq, in.UserID, items, amount, in.Address, method)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err = s.deps.Orders.Insert(ctx, entity); err != nil {
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	span.AddEvent("order.persisted",
		trace.WithAttributes(attribute.String("order.id", entity.ID)),
	)

	s.bookShipment(ctx, entity, logger)

	result := &PlaceOrderResult{
		OrderID:  entity.ID,
		Sequence: entity.Sequence,
		Status:   entity.Status,
		Amount:   entity.Amount,
	}

	if method.Deferred() {
		ref, url, gerr := s.openPayment(ctx, entity)
		if gerr != nil {
			// Compensate: the order cannot be paid for, so its booking
			// is released and the order removed.
			s.releaseShipment(ctx, entity, logger)
			if delErr := s.deps.Orders.Delete(ctx, entity.ID); delErr != nil {
				logger.Error("order_compensation_delete_failed",
					observability.F("order_id", entity.ID),
					observability.F("error", delErr.Error()),
				)
			}
			outcome, statusText = "error", "PAYMENT_SETUP_FAILED"
			return nil, gerr
		}
		entity.PaymentRef = ref
		if err = s.deps.Orders.Update(ctx, entity); err != nil {
			outcome, statusText = "error", "REPO_UPDATE_FAILED"
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		result.PaymentRef = ref
		result.RedirectURL = url
		span.SetAttributes(attribute.String("order.payment_method", string(method)))
		return result, nil
	}

	// Collect-on-delivery commits stock immediately.
	if err = s.deps.Ledger.ReserveAndCommit(ctx, lines); err != nil {
		s.releaseShipment(ctx, entity, logger)
		if delErr := s.deps.Orders.Delete(ctx, entity.ID); delErr != nil {
			logger.Error("order_compensation_delete_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", delErr.Error()),
			)
		}
		outcome, statusText = "error", "STOCK_COMMIT_FAILED"
		return nil, err
	}
	if err = s.deps.Orders.Update(ctx, entity); err != nil {
		outcome, statusText = "error", "REPO_UPDATE_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	s.clearCart(ctx, entity.UserID, logger)
	s.publish(ctx, domain.NewOrderPlacedEvent(entity), logger)

	span.AddEvent("order.placed",
		trace.WithAttributes(attribute.String("order.id", entity.ID)),
	)
	return result, nil
}

func parseLines(items []ItemInput) ([]stock.Line, error) {
	lines := make([]stock.Line, 0, len(items))
	for _, it := range items {
		size, err := catalog.ParseSize(it.Size)
		if err != nil {
			return nil, err
		}
		if it.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		lines = append(lines, stock.Line{ProductID: it.ProductID, Size: size, Quantity: it.Quantity})
	}
	return lines, nil
}

// priceItems captures each line's effective price and the order amount,
// items plus the fixed delivery charge, exactly once.
func (s *Service) priceItems(ctx context.Context, lines []stock.Line) ([]domain.Item, float64, error) {
	items := make([]domain.Item, 0, len(lines))
	total := 0.0
	for _, line := range lines {
		p, err := s.deps.Products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, 0, fmt.Errorf("order: load product %s: %w", line.ProductID, err)
		}
		price, err := s.deps.Pricer.EffectivePrice(ctx, p)
		if err != nil {
			return nil, 0, fmt.Errorf("order: price product %s: %w", line.ProductID, err)
		}
		items = append(items, domain.Item{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: price,
		})
		total += money.LineTotal(price, line.Quantity)
	}
	return items, money.Round2(total + s.deps.DeliveryFee), nil
}
