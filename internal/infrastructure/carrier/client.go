package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	domain "github.com/threadline/fulfillment/internal/domain/order"
	"github.com/threadline/fulfillment/internal/domain/shipment"
	"github.com/threadline/fulfillment/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	peerCarrier = "carrier"

	endpointAuth     = "auth"
	endpointCreate   = "orders/create"
	endpointCancel   = "orders/cancel"
	endpointTracking = "tracking"
)

type Config struct {
	BaseURL    string
	Email      string
	Password   string
	PickupName string

	// Timeout bounds each HTTP call when no client is injected.
	Timeout time.Duration
	// RefreshBuffer re-authenticates this long before the credential
	// actually expires.
	RefreshBuffer time.Duration
}

// Client talks to the carrier aggregator. It owns the bearer credential
// lifecycle: refresh ahead of expiry, single-flight so concurrent
// callers share one in-flight authentication, and exactly one forced
// re-auth plus one retry when the remote side rejects the credential.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
	refresh     singleflight.Group

	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ shipment.Gateway = (*Client)(nil)

func New(cfg Config, httpClient *http.Client, tel observability.Observability) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.RefreshBuffer <= 0 {
		cfg.RefreshBuffer = 24 * time.Hour
	}
	return &Client{
		cfg:          cfg,
		http:         httpClient,
		now:          func() time.Time { return time.Now().UTC() },
		log:          tel.Logger().With(observability.F("component", "carrier_client")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// CreateShipment maps the order onto the aggregator's schema and books
// a shipment. The payment method maps to the aggregator's own
// collection mode: COD collects on delivery, everything else ships
// prepaid.
func (c *Client) CreateShipment(ctx context.Context, o *domain.Order) (*shipment.Booking, error) {
	req := createOrderRequest{
		OrderID:       strconv.FormatInt(o.Sequence, 10),
		OrderDate:     o.CreatedAt.Format("2006-01-02 15:04"),
		PickupRef:     c.cfg.PickupName,
		PaymentMethod: collectionMode(o.PaymentMethod),
		SubTotal:      o.Amount,
		Items:         make([]createOrderItem, 0, len(o.Items)),
		Billing: createOrderAddress{
			Name:    o.Address.Name,
			Line1:   o.Address.Line1,
			Line2:   o.Address.Line2,
			City:    o.Address.City,
			State:   o.Address.State,
			ZipCode: o.Address.ZipCode,
			Country: o.Address.Country,
			Phone:   o.Address.Phone,
		},
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, createOrderItem{
			Name:    it.ProductID,
			SKU:     it.ProductID + "-" + string(it.Size),
			Units:   it.Quantity,
			Price:   it.UnitPrice,
			Variant: string(it.Size),
		})
	}

	var resp createOrderResponse
	if err := c.execute(ctx, http.MethodPost, endpointCreate, req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shipment.ErrBookingFailed, err)
	}
	return &shipment.Booking{
		ShipmentID:     resp.ShipmentID,
		CarrierOrderID: resp.CarrierOrderID,
		TrackingCode:   resp.TrackingCode,
		CarrierName:    resp.CourierName,
		TrackingURL:    resp.TrackingURL,
	}, nil
}

// CancelShipment is idempotent on the aggregator side; repeated cancels
// of the same carrier order succeed.
func (c *Client) CancelShipment(ctx context.Context, carrierOrderID string) error {
	if carrierOrderID == "" {
		return fmt.Errorf("carrier: carrier order id is required")
	}
	return c.execute(ctx, http.MethodPost, endpointCancel, cancelOrderRequest{IDs: []string{carrierOrderID}}, nil)
}

func (c *Client) Tracking(ctx context.Context, trackingCode string) (*shipment.TrackingStatus, error) {
	if trackingCode == "" {
		return nil, fmt.Errorf("carrier: tracking code is required")
	}
	var resp trackingResponse
	if err := c.execute(ctx, http.MethodGet, endpointTracking+"/"+trackingCode, nil, &resp); err != nil {
		return nil, err
	}
	return &shipment.TrackingStatus{
		TrackingCode:  resp.TrackingCode,
		Status:        resp.CurrentStatus,
		StatusTime:    resp.StatusTime,
		Location:      resp.Location,
		EstimatedDate: resp.EstimatedDate,
	}, nil
}

func collectionMode(m domain.PaymentMethod) string {
	if m == domain.MethodCOD {
		return "COD"
	}
	return "Prepaid"
}

// execute runs one authenticated call. On an authorization failure from
// the remote side it re-authenticates exactly once and retries the call
// exactly once before surfacing the error.
func (c *Client) execute(ctx context.Context, method, endpoint string, body, out any) error {
	token, err := c.ensureValidCredential(ctx)
	if err != nil {
		return err
	}

	status, err := c.do(ctx, method, endpoint, token, body, out)
	if err == nil && !authFailure(status) {
		return nil
	}
	if err != nil {
		return err
	}

	// Credential rejected remotely; force one refresh and retry once.
	token, err = c.forceRefresh(ctx)
	if err != nil {
		return err
	}
	status, err = c.do(ctx, method, endpoint, token, body, out)
	if err != nil {
		return err
	}
	if authFailure(status) {
		return fmt.Errorf("%w: rejected after refresh (status %d)", shipment.ErrCredential, status)
	}
	return nil
}

func authFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// do performs the HTTP exchange. Auth-failure statuses are returned
// with a nil error so execute can apply the retry discipline; all other
// non-2xx statuses are returned as errors.
func (c *Client) do(ctx context.Context, method, endpoint, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("carrier: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+"/"+endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("carrier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := c.now()
	resp, err := c.http.Do(req)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.extCounter.Add(1,
		observability.L("peer", peerCarrier),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.extHistogram.Observe(c.now().Sub(start).Seconds(),
		observability.L("peer", peerCarrier),
		observability.L("endpoint", endpoint),
	)
	if err != nil {
		return 0, fmt.Errorf("carrier: %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if authFailure(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("carrier: %s %s: status %d: %s", method, endpoint, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("carrier: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// ensureValidCredential returns the held token when its remaining
// lifetime exceeds the refresh buffer, otherwise authenticates.
// Concurrent callers share a single in-flight authentication.
func (c *Client) ensureValidCredential(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.RUnlock()

	if token != "" && c.now().Before(expiry.Add(-c.cfg.RefreshBuffer)) {
		return token, nil
	}
	return c.authenticate(ctx)
}

// forceRefresh discards the held credential and authenticates. Callers
// that raced into the same refresh share the result.
func (c *Client) forceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("auth", func() (any, error) {
		payload, err := json.Marshal(authRequest{Email: c.cfg.Email, Password: c.cfg.Password})
		if err != nil {
			return nil, fmt.Errorf("carrier: encode auth: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+endpointAuth, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("carrier: build auth request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := c.now()
		resp, err := c.http.Do(req)
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.extCounter.Add(1,
			observability.L("peer", peerCarrier),
			observability.L("endpoint", endpointAuth),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(c.now().Sub(start).Seconds(),
			observability.L("peer", peerCarrier),
			observability.L("endpoint", endpointAuth),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shipment.ErrCredential, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("%w: status %d: %s", shipment.ErrCredential, resp.StatusCode, snippet)
		}

		var auth authResponse
		if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
			return nil, fmt.Errorf("%w: decode: %w", shipment.ErrCredential, err)
		}
		if auth.Token == "" {
			return nil, fmt.Errorf("%w: empty token", shipment.ErrCredential)
		}

		expiry := c.now().Add(time.Duration(auth.ExpiresIn) * time.Second)
		c.mu.Lock()
		c.token = auth.Token
		c.tokenExpiry = expiry
		c.mu.Unlock()

		c.log.Info("carrier_credential_refreshed",
			observability.F("expires_at", expiry),
		)
		return auth.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
