package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	requestTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10

	intentCapture   = "CAPTURE"
	StatusCompleted = "COMPLETED"
)

// PaymentProcessor creates payment intents and captures them once approved.
type PaymentProcessor interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*Capture, error)
}

// Client is a PayPal Orders v2 REST client authenticated with the
// client-credentials grant. Tokens are cached and refreshed by oauth2.
type Client struct {
	baseURL  string
	currency string
	http     *http.Client
	logg     *logger.Logger
}

var _ PaymentProcessor = (*Client)(nil)

// NewClient builds a client for cfg. base may be nil; it is used both for the
// token exchange and for API calls.
func NewClient(cfg config.PayPalConfig, base *http.Client, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("paypal client id and secret are required")
	}
	if base == nil {
		base = &http.Client{Timeout: requestTimeout}
	}
	endpoint := cfg.Endpoint()
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     endpoint + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Client{
		baseURL:  endpoint,
		currency: currency,
		http:     cc.Client(ctx),
		logg:     logg,
	}, nil
}

// CreateOrder posts a CAPTURE intent with one purchase unit for the cart total.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order requires at least one item")
	}
	payload := c.buildCreatePayload(req)

	var res orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &res); err != nil {
		return nil, err
	}
	if res.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal returned no order id")
	}
	return &Order{ID: res.ID, Status: res.Status, ApproveURL: res.link("approve")}, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}
	var res orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &res); err != nil {
		return nil, err
	}

	capture := &Capture{OrderID: res.ID, Status: res.Status, PayerEmail: res.Payer.Email}
	for _, unit := range res.PurchaseUnits {
		for _, cp := range unit.Payments.Captures {
			capture.CaptureIDs = append(capture.CaptureIDs, cp.ID)
		}
	}
	return capture, nil
}

func (c *Client) buildCreatePayload(req CreateOrderRequest) createOrderPayload {
	items := make([]itemPayload, 0, len(req.Items))
	itemTotal := decimal.Zero
	for _, item := range req.Items {
		price := item.Price.Round(2)
		itemTotal = itemTotal.Add(price)
		items = append(items, itemPayload{
			Name:       truncate(item.Name, 127),
			SKU:        truncate(item.SKU, 127),
			Quantity:   "1",
			Category:   "DIGITAL_GOODS",
			UnitAmount: money{CurrencyCode: c.currency, Value: price.StringFixed(2)},
		})
	}

	total := req.Total.Round(2)
	amount := amountPayload{
		CurrencyCode: c.currency,
		Value:        total.StringFixed(2),
		Breakdown: &breakdown{
			ItemTotal: money{CurrencyCode: c.currency, Value: itemTotal.StringFixed(2)},
		},
	}
	// list prices minus the cart total is what the calculators took off
	if off := itemTotal.Sub(total); off.IsPositive() {
		amount.Breakdown.Discount = &money{CurrencyCode: c.currency, Value: off.StringFixed(2)}
	}

	return createOrderPayload{
		Intent: intentCapture,
		PurchaseUnits: []purchaseUnitPayload{{
			ReferenceID: req.ReferenceID,
			Amount:      amount,
			Items:       items,
		}},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
		var parsed struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(snippet, &parsed) == nil {
			apiErr.Name = parsed.Name
			apiErr.Message = parsed.Message
		}
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"paypal_path":   path,
				"paypal_status": resp.StatusCode,
				"paypal_error":  apiErr.Name,
			})
			c.logg.Warn(logCtx, "paypal request rejected")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, "payment processor rejected the request")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
