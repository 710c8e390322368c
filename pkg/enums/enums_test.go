package enums

import "testing"

func TestParseProductType(t *testing.T) {
	got, err := ParseProductType("grouped")
	if err != nil || got != ProductTypeGrouped {
		t.Fatalf("expected grouped, got %q err=%v", got, err)
	}
	if _, err := ParseProductType("physical"); err == nil {
		t.Fatalf("expected error for unknown product type")
	}
}

func TestOrderStatusValidity(t *testing.T) {
	if !OrderStatusComplete.IsValid() || !OrderStatusPending.IsValid() {
		t.Fatalf("expected known statuses to be valid")
	}
	if OrderStatus("refunded").IsValid() {
		t.Fatalf("unexpected valid status")
	}
	if _, err := ParseOrderStatus("PENDING"); err == nil {
		t.Fatalf("status parsing is case sensitive")
	}
}

func TestParseDiscountType(t *testing.T) {
	if got, err := ParseDiscountType("cart"); err != nil || got != DiscountTypeCart {
		t.Fatalf("expected cart, got %q err=%v", got, err)
	}
	if _, err := ParseDiscountType("shipping"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseOutboxEventType(t *testing.T) {
	if got, err := ParseOutboxEventType("order_completed"); err != nil || got != EventOrderCompleted {
		t.Fatalf("unexpected result %q err=%v", got, err)
	}
	if AggregateOrder.IsValid() != true {
		t.Fatalf("expected order aggregate to be valid")
	}
}
