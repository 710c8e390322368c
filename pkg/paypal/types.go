package paypal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Item struct {
	SKU   string
	Name  string
	Price decimal.Decimal
}

// CreateOrderRequest describes a cart sent to PayPal. Total is the already
// discounted amount the buyer pays.
type CreateOrderRequest struct {
	ReferenceID string
	Items       []Item
	Total       decimal.Decimal
}

type Order struct {
	ID         string
	Status     string
	ApproveURL string
}

type Capture struct {
	OrderID    string
	Status     string
	PayerEmail string
	CaptureIDs []string
}

func (c *Capture) Completed() bool {
	return c != nil && c.Status == StatusCompleted
}

// APIError is a non-2xx PayPal response.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("paypal %d: %s", e.StatusCode, e.Body)
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type breakdown struct {
	ItemTotal money  `json:"item_total"`
	Discount  *money `json:"discount,omitempty"`
}

type amountPayload struct {
	CurrencyCode string     `json:"currency_code"`
	Value        string     `json:"value"`
	Breakdown    *breakdown `json:"breakdown,omitempty"`
}

type itemPayload struct {
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	Quantity   string `json:"quantity"`
	Category   string `json:"category,omitempty"`
	UnitAmount money  `json:"unit_amount"`
}

type purchaseUnitPayload struct {
	ReferenceID string        `json:"reference_id,omitempty"`
	Amount      amountPayload `json:"amount"`
	Items       []itemPayload `json:"items,omitempty"`
}

type createOrderPayload struct {
	Intent        string                `json:"intent"`
	PurchaseUnits []purchaseUnitPayload `json:"purchase_units"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
	Payer  struct {
		Email string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o orderResponse) link(rel string) string {
	for _, l := range o.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}
