package llm

import "github.com/joseph-ayodele/invoice-reader/internal/entity"

// InvoiceSchemaName is sent as json_schema.name on structured calls.
const InvoiceSchemaName = "invoice_record"

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is passed to the backend as the structured output constraint and used locally to validate.
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		entity.ColInvoiceID:       requiredString("Invoice or order number exactly as printed."),
		entity.ColDateTime:        requiredString("Invoice date and time exactly as printed."),
		entity.ColReceiver:        requiredString("Name of the customer the invoice is addressed to."),
		entity.ColProvider:        optionalString("Business that issued the invoice."),
		entity.ColRestaurant:      optionalString("Restaurant the order came from."),
		entity.ColDeliveryPartner: optionalString("Delivery partner or courier."),
		entity.ColOrderDetails: map[string]any{
			"type":        "array",
			"description": "One object per line item, e.g. item, quantity, price.",
			"items":       stringMapItem(),
		},
		entity.ColTaxes:          map[string]any{"type": "number", "description": "Total taxes."},
		entity.ColDeliveryCharge: optionalNumber("Delivery charge."),
		entity.ColPlatformFee:    optionalNumber("Platform or service fee."),
		entity.ColCouponName: map[string]any{
			"type":        []string{"array", "null"},
			"description": "Applied coupons.",
			"items":       stringMapItem(),
		},
		entity.ColDiscountAmount: map[string]any{
			"type":        []string{"array", "null"},
			"description": "Discounts as objects mapping a label to an amount.",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": []string{"number", "null"}},
			},
		},
		entity.ColTotalAmount: map[string]any{"type": "number", "description": "Grand total paid."},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             entity.RequiredColumns,
	}
}

func requiredString(desc string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "description": desc}
}

func optionalString(desc string) map[string]any {
	return map[string]any{"type": []string{"string", "null"}, "description": desc}
}

func optionalNumber(desc string) map[string]any {
	return map[string]any{"type": []string{"number", "null"}, "description": desc}
}

func stringMapItem() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": []string{"string", "null"}},
	}
}
