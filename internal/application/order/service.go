package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/threadline/fulfillment/internal/domain/catalog"
	"github.com/threadline/fulfillment/internal/domain/event"
	domain "github.com/threadline/fulfillment/internal/domain/order"
	dompayment "github.com/threadline/fulfillment/internal/domain/payment"
	"github.com/threadline/fulfillment/internal/domain/shipment"
	"github.com/threadline/fulfillment/internal/observability"
)

const (
	orderService = "order-service"

	useCasePlace   = "order.place"
	useCaseConfirm = "order.confirm_payment"
	useCaseAdvance = "order.advance_status"
	useCaseCancel  = "order.cancel"
	useCaseSweep   = "order.sweep_cancelled"
)

var (
	ErrNotFound        = domain.ErrNotFound
	ErrUnpayableMethod = errors.New("order: payment method does not require confirmation")
	ErrRepository      = errors.New("order: repository failure")
	ErrValidation      = errors.New("validation")
)

// Deps wires the collaborators the order state machine drives. Gateway,
// cart, publisher and the payment gateways may be nil; every call
// through them is best-effort or method-gated.
type Deps struct {
	Orders   domain.Repository
	Counter  domain.Counter
	Products catalog.Repository
	Ledger   StockLedger
	Pricer   Pricer
	IDGen    IDGenerator

	Gateway   shipment.Gateway
	Redirect  dompayment.RedirectGateway
	Intent    dompayment.IntentGateway
	Cart      Cart
	Publisher event.Publisher

	DeliveryFee float64
	Tel         observability.Observability
}

// Service is the order state machine. It is the only writer of order
// status, paid flag and shipment fields.
type Service struct {
	deps Deps
	now  func() time.Time

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewService(deps Deps) *Service {
	tel := deps.Tel
	if tel == nil {
		tel = observability.Nop()
	}
	deps.Tel = tel

	return &Service{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
		log: tel.Logger().With(
			observability.F("service", orderService),
		),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

type ItemInput struct {
	ProductID string
	Size      string
	Quantity  int
}

type PlaceOrderInput struct {
	UserID        string
	Items         []ItemInput
	Address       domain.Address
	PaymentMethod string
}

type PlaceOrderResult struct {
	OrderID  string
	Sequence int64
	Status   domain.Status
	Amount   float64

	// RedirectURL is set for the session payment mode.
	RedirectURL string
	// PaymentRef is the remote payment handle for deferred modes.
	PaymentRef string
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
