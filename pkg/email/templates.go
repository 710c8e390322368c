package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var orderConfirmationTmpl = template.Must(template.ParseFS(templateFS, "templates/order_confirmation.html"))

type OrderLine struct {
	Name  string
	Price decimal.Decimal
}

// OrderConfirmation is the data rendered into the confirmation email.
type OrderConfirmation struct {
	PublicHost   string
	CustomerName string
	OrderID      string
	CouponCode   string
	Lines        []OrderLine
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
}

type orderConfirmationView struct {
	CustomerName string
	OrderID      string
	OrderURL     string
	OrdersURL    string
	CouponCode   string
	Lines        []orderLineView
	Subtotal     string
	Discount     string
	Total        string
}

type orderLineView struct {
	Name  string
	Price string
}

func RenderOrderConfirmation(data OrderConfirmation) (string, error) {
	host := strings.TrimRight(data.PublicHost, "/")
	view := orderConfirmationView{
		CustomerName: data.CustomerName,
		OrderID:      data.OrderID,
		OrderURL:     host + "/my-account/orders/" + data.OrderID,
		OrdersURL:    host + "/my-account/orders",
		CouponCode:   data.CouponCode,
		Subtotal:     data.Subtotal.StringFixed(2),
		Discount:     data.Discount.StringFixed(2),
		Total:        data.Total.StringFixed(2),
	}
	for _, line := range data.Lines {
		view.Lines = append(view.Lines, orderLineView{Name: line.Name, Price: line.Price.StringFixed(2)})
	}

	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render order confirmation: %w", err)
	}
	return buf.String(), nil
}
