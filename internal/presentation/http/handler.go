package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appDiscount "github.com/threadline/fulfillment/internal/application/discount"
	appOrder "github.com/threadline/fulfillment/internal/application/order"
	appTracking "github.com/threadline/fulfillment/internal/application/tracking"
	"github.com/threadline/fulfillment/internal/domain/catalog"
	domdiscount "github.com/threadline/fulfillment/internal/domain/discount"
	domainOrder "github.com/threadline/fulfillment/internal/domain/order"
	dompayment "github.com/threadline/fulfillment/internal/domain/payment"
	"github.com/threadline/fulfillment/internal/observability"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	orderService *appOrder.Service
	discounts    *appDiscount.Resolver
	tracking     *appTracking.Service
	products     catalog.Repository
	retention    time.Duration

	log          observability.Logger
	tel          observability.Observability
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewHandler(
	orderSvc *appOrder.Service,
	discounts *appDiscount.Resolver,
	tracking *appTracking.Service,
	products catalog.Repository,
	retention time.Duration,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		orderService: orderSvc,
		discounts:    discounts,
		tracking:     tracking,
		products:     products,
		retention:    retention,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodPost, "/order", h.handlePlaceOrder)
	h.muxHandle(mux, http.MethodGet, "/order/get", h.handleGetOrder)
	h.muxHandle(mux, http.MethodPost, "/order/confirm", h.handleConfirmPayment)
	h.muxHandle(mux, http.MethodPost, "/order/status", h.handleAdvanceStatus)
	h.muxHandle(mux, http.MethodPost, "/order/cancel", h.handleCancelOrder)
	h.muxHandle(mux, http.MethodPost, "/order/sweep", h.handleSweepOrders)
	h.muxHandle(mux, http.MethodGet, "/price", h.handleEffectivePrice)
	h.muxHandle(mux, http.MethodPost, "/discount", h.handleAddDiscount)
	h.muxHandle(mux, http.MethodPost, "/discount/sweep", h.handleSweepDiscounts)
	h.muxHandle(mux, http.MethodGet, "/tracking", h.handleTracking)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				h.log,
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
			)(
				h.withAccessLog(
					h.withHTTPMetrics(http.HandlerFunc(handler)),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type addressRequest struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type placeOrderRequest struct {
	UserID        string         `json:"user_id"`
	PaymentMethod string         `json:"payment_method"`
	Address       addressRequest `json:"address"`
	Items         []struct {
		ProductID string `json:"product_id"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type placeOrderResponse struct {
	OrderID     string             `json:"order_id"`
	Sequence    int64              `json:"sequence"`
	Status      domainOrder.Status `json:"status"`
	Amount      float64            `json:"amount"`
	PaymentRef  string             `json:"payment_ref,omitempty"`
	RedirectURL string             `json:"redirect_url,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	in := appOrder.PlaceOrderInput{
		UserID:        req.UserID,
		PaymentMethod: req.PaymentMethod,
		Address: domainOrder.Address{
			Name:    req.Address.Name,
			Line1:   req.Address.Line1,
			Line2:   req.Address.Line2,
			City:    req.Address.City,
			State:   req.Address.State,
			ZipCode: req.Address.ZipCode,
			Country: req.Address.Country,
			Phone:   req.Address.Phone,
		},
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, appOrder.ItemInput{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}

	result, err := h.orderService.PlaceOrder(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:     result.OrderID,
		Sequence:    result.Sequence,
		Status:      result.Status,
		Amount:      result.Amount,
		PaymentRef:  result.PaymentRef,
		RedirectURL: result.RedirectURL,
	})
}

type orderResponse struct {
	OrderID  string             `json:"order_id"`
	Sequence int64              `json:"sequence"`
	Status   domainOrder.Status `json:"status"`
	Amount   float64            `json:"amount"`
	Paid     bool               `json:"paid"`
	Tracking string             `json:"tracking_code,omitempty"`
	Reason   string             `json:"cancellation_reason,omitempty"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	return orderResponse{
		OrderID:  o.ID,
		Sequence: o.Sequence,
		Status:   o.Status,
		Amount:   o.Amount,
		Paid:     o.Paid,
		Tracking: o.Shipment.TrackingCode,
		Reason:   o.CancellationReason,
	}
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type confirmPaymentRequest struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.orderService.ConfirmPayment(r.Context(), req.OrderID, req.PaymentRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type advanceStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (h *Handler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domainOrder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.orderService.AdvanceStatus(r.Context(), req.OrderID, status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.orderService.Cancel(r.Context(), req.OrderID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleSweepOrders(w http.ResponseWriter, r *http.Request) {
	count, err := h.orderService.SweepStaleCancelled(r.Context(), h.retention)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

func (h *Handler) handleEffectivePrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.URL.Query().Get("product_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	price, err := h.discounts.EffectivePrice(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": p.ID,
		"base_price": p.BasePrice,
		"price":      price,
	})
}

type addDiscountRequest struct {
	ProductID string    `json:"product_id"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (h *Handler) handleAddDiscount(w http.ResponseWriter, r *http.Request) {
	var req addDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := h.discounts.Add(r.Context(), appDiscount.AddInput{
		ProductID: req.ProductID,
		Type:      domdiscount.Type(req.Type),
		Value:     req.Value,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"discount_id": d.ID,
		"product_id":  d.ProductID,
		"type":        string(d.Type),
		"value":       d.Value,
		"end_date":    d.EndDate,
	})
}

func (h *Handler) handleSweepDiscounts(w http.ResponseWriter, r *http.Request) {
	count, err := h.discounts.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": count})
}

func (h *Handler) handleTracking(w http.ResponseWriter, r *http.Request) {
	status, err := h.tracking.Get(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case catalog.IsInsufficientStock(err):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domdiscount.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainOrder.ErrInvalidStateTransition),
		errors.Is(err, domdiscount.ErrAlreadyActive):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dompayment.ErrVerificationFailed):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, catalog.ErrUnknownSize),
		errors.Is(err, domdiscount.ErrInvalidValue),
		errors.Is(err, domdiscount.ErrInvalidWindow),
		errors.Is(err, domainOrder.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, appOrder.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
