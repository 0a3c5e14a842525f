package entity

// InvoiceRecord is the fixed shape extracted from one invoice.
// Optional scalars are pointers so a null from the model stays distinguishable from zero.
type InvoiceRecord struct {
	InvoiceID       string                `json:"invoice_id"`
	DateTime        string                `json:"date_time"` // as printed on the invoice, not normalized
	Receiver        string                `json:"receiver"`
	Provider        *string               `json:"provider"`
	Restaurant      *string               `json:"restaurant"`
	DeliveryPartner *string               `json:"delivery_partner"`
	OrderDetails    []map[string]*string  `json:"order_details"`
	Taxes           float64               `json:"taxes"`
	DeliveryCharge  *float64              `json:"delivery_charge"`
	PlatformFee     *float64              `json:"platform_fee"`
	CouponName      []map[string]*string  `json:"coupon_name"`
	DiscountAmount  []map[string]*float64 `json:"discount_amount"` // keys are amounts rendered as strings
	TotalAmount     float64               `json:"total_amount"`
}

// Column names in record key order. This is also the CSV header.
const (
	ColInvoiceID       = "invoice_id"
	ColDateTime        = "date_time"
	ColReceiver        = "receiver"
	ColProvider        = "provider"
	ColRestaurant      = "restaurant"
	ColDeliveryPartner = "delivery_partner"
	ColOrderDetails    = "order_details"
	ColTaxes           = "taxes"
	ColDeliveryCharge  = "delivery_charge"
	ColPlatformFee     = "platform_fee"
	ColCouponName      = "coupon_name"
	ColDiscountAmount  = "discount_amount"
	ColTotalAmount     = "total_amount"
)

// Columns is the natural key order of InvoiceRecord.
var Columns = []string{
	ColInvoiceID,
	ColDateTime,
	ColReceiver,
	ColProvider,
	ColRestaurant,
	ColDeliveryPartner,
	ColOrderDetails,
	ColTaxes,
	ColDeliveryCharge,
	ColPlatformFee,
	ColCouponName,
	ColDiscountAmount,
	ColTotalAmount,
}

// RequiredColumns must be present (and non-empty for strings) in every record.
var RequiredColumns = []string{
	ColInvoiceID,
	ColDateTime,
	ColReceiver,
	ColOrderDetails,
	ColTaxes,
	ColTotalAmount,
}

// NumericColumns hold money amounts.
var NumericColumns = []string{
	ColTaxes,
	ColDeliveryCharge,
	ColPlatformFee,
	ColTotalAmount,
}

// Fragment is the text of one PDF page.
type Fragment struct {
	Page int    `json:"page"` // 1-based
	Text string `json:"text"`
}
