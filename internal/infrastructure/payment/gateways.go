// Package payment provides simulated remote payment gateways. Each
// gateway decides the payment's fate when it is opened and reports it
// on the follow-up verification, which keeps verification idempotent
// the way the real providers behave.
package payment

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	domain "github.com/threadline/fulfillment/internal/domain/order"
	dompayment "github.com/threadline/fulfillment/internal/domain/payment"
)

var errUnknownRef = errors.New("payment: unknown payment reference")

type outcomes struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	results     map[string]bool
}

func newOutcomes(successRate float64) *outcomes {
	return &outcomes{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		results:     make(map[string]bool),
	}
}

func (o *outcomes) decide(ref string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[ref] = o.random.Float64() <= o.successRate
}

func (o *outcomes) lookup(ref string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result, ok := o.results[ref]
	if !ok {
		return false, errUnknownRef
	}
	return result, nil
}

// RedirectSim simulates the checkout-session mode.
type RedirectSim struct {
	checkoutBase string
	outcomes     *outcomes
}

var _ dompayment.RedirectGateway = (*RedirectSim)(nil)

func NewRedirectSim(checkoutBase string, successRate float64) *RedirectSim {
	return &RedirectSim{
		checkoutBase: checkoutBase,
		outcomes:     newOutcomes(successRate),
	}
}

func (g *RedirectSim) CreateSession(ctx context.Context, o *domain.Order) (*dompayment.Session, error) {
	_ = ctx
	if o == nil {
		return nil, errors.New("payment: order is required")
	}
	id := "cs_" + uuid.NewString()
	g.outcomes.decide(id)
	return &dompayment.Session{ID: id, URL: g.checkoutBase + "/" + id}, nil
}

func (g *RedirectSim) Verify(ctx context.Context, sessionID string) (bool, error) {
	_ = ctx
	return g.outcomes.lookup(sessionID)
}

// IntentSim simulates the payment-object mode verified by lookup.
type IntentSim struct {
	outcomes *outcomes
}

var _ dompayment.IntentGateway = (*IntentSim)(nil)

func NewIntentSim(successRate float64) *IntentSim {
	return &IntentSim{outcomes: newOutcomes(successRate)}
}

func (g *IntentSim) CreateIntent(ctx context.Context, o *domain.Order) (*dompayment.Intent, error) {
	_ = ctx
	if o == nil {
		return nil, errors.New("payment: order is required")
	}
	id := "pi_" + uuid.NewString()
	g.outcomes.decide(id)
	return &dompayment.Intent{ID: id, Amount: o.Amount, Currency: "INR"}, nil
}

func (g *IntentSim) Verify(ctx context.Context, intentID string) (bool, error) {
	_ = ctx
	return g.outcomes.lookup(intentID)
}
