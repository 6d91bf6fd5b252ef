package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/threadline/fulfillment/internal/domain/order"
	"github.com/threadline/fulfillment/internal/domain/shipment"
)

// carrierStub fakes the aggregator: every successful auth hands out a
// new numbered token, data endpoints check the bearer.
type carrierStub struct {
	mu        sync.Mutex
	authCalls int32
	authDelay time.Duration
	expiresIn int64

	// rejectTokens holds tokens the data endpoints answer 401 to.
	rejectTokens map[string]bool

	dataCalls int32
}

func newCarrierStub() *carrierStub {
	return &carrierStub{expiresIn: 10 * 24 * 3600, rejectTokens: map[string]bool{}}
}

func (s *carrierStub) currentToken() string {
	return fmt.Sprintf("tok-%d", atomic.LoadInt32(&s.authCalls))
}

func (s *carrierStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		if s.authDelay > 0 {
			time.Sleep(s.authDelay)
		}
		n := atomic.AddInt32(&s.authCalls, 1)
		_ = json.NewEncoder(w).Encode(authResponse{
			Token:     fmt.Sprintf("tok-%d", n),
			ExpiresIn: s.expiresIn,
		})
	})
	data := func(respond func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&s.dataCalls, 1)
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			s.mu.Lock()
			rejected := s.rejectTokens[token]
			s.mu.Unlock()
			if token == "" || rejected {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			respond(w, r)
		}
	}
	mux.HandleFunc("/orders/create", data(func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(createOrderResponse{
			ShipmentID:     "ship-1",
			CarrierOrderID: "carrier-" + req.OrderID,
			TrackingCode:   "AWB001",
			CourierName:    "Delhivery",
			TrackingURL:    "https://track.example/AWB001",
		})
	}))
	mux.HandleFunc("/orders/cancel", data(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("/tracking/", data(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/tracking/")
		_ = json.NewEncoder(w).Encode(trackingResponse{
			TrackingCode:  code,
			CurrentStatus: "In Transit",
			Location:      "Nagpur",
		})
	}))
	return mux
}

func newTestClient(t *testing.T, stub *carrierStub) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:       srv.URL,
		Email:         "ops@threadline.example",
		Password:      "secret",
		PickupName:    "warehouse-1",
		RefreshBuffer: 24 * time.Hour,
	}, srv.Client(), nil)
	return c, srv
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:            "o1",
		Sequence:      42,
		UserID:        "u1",
		Items:         []domain.Item{{ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: 100}},
		Amount:        210,
		Address:       domain.Address{Name: "A", Line1: "1 Main St", City: "Pune", ZipCode: "411001", Country: "IN", Phone: "9999999999"},
		Status:        domain.StatusPlaced,
		PaymentMethod: domain.MethodCOD,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCreateShipment(t *testing.T) {
	stub := newCarrierStub()
	c, _ := newTestClient(t, stub)

	booking, err := c.CreateShipment(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "carrier-42", booking.CarrierOrderID)
	assert.Equal(t, "AWB001", booking.TrackingCode)
	assert.Equal(t, "Delhivery", booking.CarrierName)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.authCalls))

	// Second call reuses the held credential.
	_, err = c.CreateShipment(context.Background(), testOrder())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.authCalls))
}

func TestConcurrentCallsShareOneAuthentication(t *testing.T) {
	stub := newCarrierStub()
	stub.authDelay = 100 * time.Millisecond
	c, _ := newTestClient(t, stub)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.Tracking(context.Background(), fmt.Sprintf("AWB%03d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.authCalls), "concurrent callers share one in-flight authentication")
}

func TestRejectedCredentialRetriesOnce(t *testing.T) {
	stub := newCarrierStub()
	c, _ := newTestClient(t, stub)

	// Warm the credential, then have the remote side reject it.
	require.NoError(t, c.CancelShipment(context.Background(), "carrier-1"))
	stub.mu.Lock()
	stub.rejectTokens[stub.currentToken()] = true
	stub.mu.Unlock()
	atomic.StoreInt32(&stub.dataCalls, 0)

	require.NoError(t, c.CancelShipment(context.Background(), "carrier-1"))

	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.authCalls), "exactly one forced re-authentication")
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.dataCalls), "the call is retried exactly once")
}

func TestCredentialRejectedAfterRefresh(t *testing.T) {
	stub := newCarrierStub()
	c, _ := newTestClient(t, stub)

	// Every token the stub ever hands out is rejected.
	stub.mu.Lock()
	for i := 1; i <= 10; i++ {
		stub.rejectTokens[fmt.Sprintf("tok-%d", i)] = true
	}
	stub.mu.Unlock()

	err := c.CancelShipment(context.Background(), "carrier-1")
	assert.ErrorIs(t, err, shipment.ErrCredential)
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.authCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.dataCalls))
}

func TestRefreshAheadOfExpiry(t *testing.T) {
	stub := newCarrierStub()
	stub.expiresIn = int64((30 * time.Hour).Seconds())
	c, _ := newTestClient(t, stub)

	base := time.Now().UTC()
	clock := base
	c.now = func() time.Time { return clock }

	_, err := c.Tracking(context.Background(), "AWB001")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&stub.authCalls))

	// Five hours in, remaining lifetime is 25h, still outside the 24h
	// buffer.
	clock = base.Add(5 * time.Hour)
	_, err = c.Tracking(context.Background(), "AWB001")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.authCalls))

	// Seven hours in, remaining lifetime 23h, inside the buffer: the
	// next call refreshes before the credential actually expires.
	clock = base.Add(7 * time.Hour)
	_, err = c.Tracking(context.Background(), "AWB001")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.authCalls))
}

func TestAuthenticationFailureSurfacesCredentialError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Email: "x", Password: "y"}, srv.Client(), nil)
	_, err := c.Tracking(context.Background(), "AWB001")
	assert.ErrorIs(t, err, shipment.ErrCredential)

	_, err = c.CreateShipment(context.Background(), testOrder())
	assert.ErrorIs(t, err, shipment.ErrBookingFailed)
	assert.ErrorIs(t, err, shipment.ErrCredential)
}

func TestCollectionMode(t *testing.T) {
	assert.Equal(t, "COD", collectionMode(domain.MethodCOD))
	assert.Equal(t, "Prepaid", collectionMode(domain.MethodCard))
	assert.Equal(t, "Prepaid", collectionMode(domain.MethodUPI))
}

func TestInputGuards(t *testing.T) {
	c := New(Config{BaseURL: "http://unused.example"}, nil, nil)
	assert.Error(t, c.CancelShipment(context.Background(), ""))
	_, err := c.Tracking(context.Background(), "")
	assert.Error(t, err)
}
