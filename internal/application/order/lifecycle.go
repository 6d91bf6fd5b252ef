package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/threadline/fulfillment/internal/application/stock"
	"github.com/threadline/fulfillment/internal/domain/event"
	domain "github.com/threadline/fulfillment/internal/domain/order"
	dompayment "github.com/threadline/fulfillment/internal/domain/payment"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

// Get returns the order by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, newValidation("order id is required")
	}
	return s.deps.Orders.Get(ctx, id)
}

// ConfirmPayment verifies a deferred payment with its remote gateway.
// On success the stock decrement is committed (it was not at placement
// for these modes), the order marked paid, the cart cleared. On a
// reported verification failure the unpaid order is deleted; no stock
// had been committed on this path.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, paymentRef string) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", useCaseConfirm),
		observability.F("order_id", orderID),
	)

	entity, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		s.count(useCaseConfirm, "error")
		return nil, err
	}
	if entity.Paid {
		// Verified earlier; replaying the confirmation is harmless.
		s.count(useCaseConfirm, "success")
		return entity, nil
	}
	if !entity.PaymentMethod.Deferred() {
		s.count(useCaseConfirm, "error")
		return nil, ErrUnpayableMethod
	}
	if paymentRef == "" {
		paymentRef = entity.PaymentRef
	}

	ok, verr := s.verifyPayment(ctx, entity.PaymentMethod, paymentRef)
	if verr != nil {
		s.count(useCaseConfirm, "error")
		return nil, fmt.Errorf("order: verify payment: %w", verr)
	}
	if !ok {
		// Compensating action: remove the unpaid order and release the
		// carrier booking if one was made.
		s.releaseShipment(ctx, entity, logger)
		if delErr := s.deps.Orders.Delete(ctx, entity.ID); delErr != nil {
			logger.Error("unpaid_order_delete_failed", observability.F("error", delErr.Error()))
		}
		logger.Info("payment_verification_failed")
		s.count(useCaseConfirm, "error")
		return nil, dompayment.ErrVerificationFailed
	}

	lines := stock.LinesFromItems(entity.Items)
	if err := s.deps.Ledger.ReserveAndCommit(ctx, lines); err != nil {
		// Payment is captured but stock is gone; surface the error and
		// keep the order for manual resolution.
		logger.Error("paid_order_stock_commit_failed", observability.F("error", err.Error()))
		s.count(useCaseConfirm, "error")
		return nil, err
	}

	entity.MarkPaid()
	if err := s.deps.Orders.Update(ctx, entity); err != nil {
		s.count(useCaseConfirm, "error")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	s.clearCart(ctx, entity.UserID, logger)
	s.publish(ctx, domain.NewPaymentConfirmedEvent(entity), logger)

	logger.Info("payment_confirmed", observability.F("amount", entity.Amount))
	s.count(useCaseConfirm, "success")
	return entity, nil
}

// AdvanceStatus performs an administrative transition along the happy
// path. Packing additionally notifies the customer, best-effort.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to domain.Status) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", useCaseAdvance),
		observability.F("order_id", orderID),
	)

	entity, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		s.count(useCaseAdvance, "error")
		return nil, err
	}
	if err := entity.Advance(to); err != nil {
		s.count(useCaseAdvance, "error")
		return nil, err
	}
	if err := s.deps.Orders.Update(ctx, entity); err != nil {
		s.count(useCaseAdvance, "error")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if to == domain.StatusPacking {
		s.publish(ctx, domain.NewOrderPackedEvent(entity), logger)
	}

	logger.Info("status_advanced", observability.F("status", string(to)))
	s.count(useCaseAdvance, "success")
	return entity, nil
}

// Cancel rejects terminal orders, releases the carrier booking
// (best-effort), restores stock, and only then marks the order
// Cancelled so the retention sweep never sees one with stock still
// held. Stock restores exactly once: a second cancel is rejected by
// the state machine before any restore runs.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", useCaseCancel),
		observability.F("order_id", orderID),
	)

	entity, err := s.deps.Orders.Get(ctx, orderID)
	if err != nil {
		s.count(useCaseCancel, "error")
		return nil, err
	}
	if entity.Status.Terminal() {
		s.count(useCaseCancel, "error")
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, entity.Status, domain.StatusCancelled)
	}

	s.releaseShipment(ctx, entity, logger)

	if s.stockCommitted(entity) {
		if err := s.deps.Ledger.Restore(ctx, stock.LinesFromItems(entity.Items)); err != nil {
			s.count(useCaseCancel, "error")
			return nil, fmt.Errorf("order: restore stock: %w", err)
		}
	}

	if err := entity.Cancel(reason); err != nil {
		s.count(useCaseCancel, "error")
		return nil, err
	}
	if err := s.deps.Orders.Update(ctx, entity); err != nil {
		s.count(useCaseCancel, "error")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	s.publish(ctx, domain.NewOrderCancelledEvent(entity), logger)

	logger.Info("order_cancelled", observability.F("reason", reason))
	s.count(useCaseCancel, "success")
	return entity, nil
}

// stockCommitted reports whether the order's stock decrement has run:
// at placement for collect-on-delivery, at confirmation otherwise.
func (s *Service) stockCommitted(o *domain.Order) bool {
	return !o.PaymentMethod.Deferred() || o.Paid
}

func (s *Service) verifyPayment(ctx context.Context, method domain.PaymentMethod, ref string) (bool, error) {
	switch method {
	case domain.MethodCard:
		if s.deps.Redirect == nil {
			return false, errors.New("order: redirect gateway not configured")
		}
		return s.deps.Redirect.Verify(ctx, ref)
	case domain.MethodUPI:
		if s.deps.Intent == nil {
			return false, errors.New("order: intent gateway not configured")
		}
		return s.deps.Intent.Verify(ctx, ref)
	}
	return false, ErrUnpayableMethod
}

// openPayment starts the remote payment for a deferred method and
// returns (paymentRef, redirectURL).
func (s *Service) openPayment(ctx context.Context, o *domain.Order) (string, string, error) {
	switch o.PaymentMethod {
	case domain.MethodCard:
		if s.deps.Redirect == nil {
			return "", "", errors.New("order: redirect gateway not configured")
		}
		session, err := s.deps.Redirect.CreateSession(ctx, o)
		if err != nil {
			return "", "", fmt.Errorf("order: create checkout session: %w", err)
		}
		return session.ID, session.URL, nil
	case domain.MethodUPI:
		if s.deps.Intent == nil {
			return "", "", errors.New("order: intent gateway not configured")
		}
		intent, err := s.deps.Intent.CreateIntent(ctx, o)
		if err != nil {
			return "", "", fmt.Errorf("order: create payment intent: %w", err)
		}
		return intent.ID, "", nil
	}
	return "", "", ErrUnpayableMethod
}

// bookShipment asks the carrier for a booking. Failure is logged and
// never blocks order placement.
func (s *Service) bookShipment(ctx context.Context, o *domain.Order, logger observability.Logger) {
	if s.deps.Gateway == nil {
		return
	}
	booking, err := s.deps.Gateway.CreateShipment(ctx, o)
	if err != nil {
		logger.Warn("shipment_booking_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
		return
	}
	o.AttachShipment(domain.ShipmentInfo{
		ShipmentID:     booking.ShipmentID,
		CarrierOrderID: booking.CarrierOrderID,
		TrackingCode:   booking.TrackingCode,
		CarrierName:    booking.CarrierName,
		TrackingURL:    booking.TrackingURL,
	})
}

// releaseShipment cancels the carrier booking if one exists. Failure is
// logged and never blocks the local transition.
func (s *Service) releaseShipment(ctx context.Context, o *domain.Order, logger observability.Logger) {
	if s.deps.Gateway == nil || !o.Shipment.Booked() {
		return
	}
	if err := s.deps.Gateway.CancelShipment(ctx, o.Shipment.CarrierOrderID); err != nil {
		logger.Warn("shipment_cancel_failed",
			observability.F("order_id", o.ID),
			observability.F("carrier_order_id", o.Shipment.CarrierOrderID),
			observability.F("error", err.Error()),
		)
	}
}

func (s *Service) clearCart(ctx context.Context, userID string, logger observability.Logger) {
	if s.deps.Cart == nil {
		return
	}
	if err := s.deps.Cart.Clear(ctx, userID); err != nil {
		logger.Warn("cart_clear_failed",
			observability.F("user_id", userID),
			observability.F("error", err.Error()),
		)
	}
}

func (s *Service) publish(ctx context.Context, e event.Event, logger observability.Logger) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func (s *Service) count(useCase, outcome string) {
	s.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
