package carrier

// Wire schema of the carrier aggregator's REST API.

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

type createOrderRequest struct {
	OrderID       string             `json:"order_id"`
	OrderDate     string             `json:"order_date"`
	PickupRef     string             `json:"pickup_location"`
	PaymentMethod string             `json:"payment_method"` // "COD" | "Prepaid"
	SubTotal      float64            `json:"sub_total"`
	Items         []createOrderItem  `json:"order_items"`
	Billing       createOrderAddress `json:"billing"`
}

type createOrderItem struct {
	Name    string  `json:"name"`
	SKU     string  `json:"sku"`
	Units   int     `json:"units"`
	Price   float64 `json:"selling_price"`
	Variant string  `json:"variant"`
}

type createOrderAddress struct {
	Name    string `json:"name"`
	Line1   string `json:"address"`
	Line2   string `json:"address_2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"pincode"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type createOrderResponse struct {
	ShipmentID     string `json:"shipment_id"`
	CarrierOrderID string `json:"order_id"`
	TrackingCode   string `json:"awb_code"`
	CourierName    string `json:"courier_name"`
	TrackingURL    string `json:"tracking_url"`
}

type cancelOrderRequest struct {
	IDs []string `json:"ids"`
}

type trackingResponse struct {
	TrackingCode  string `json:"awb_code"`
	CurrentStatus string `json:"current_status"`
	StatusTime    string `json:"status_time"`
	Location      string `json:"location"`
	EstimatedDate string `json:"etd"`
}
