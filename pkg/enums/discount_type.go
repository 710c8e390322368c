package enums

import "fmt"

// DiscountType selects which stage of the cart pipeline a discount runs in.
type DiscountType string

const (
	DiscountTypeProduct DiscountType = "product"
	DiscountTypeCart    DiscountType = "cart"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeProduct,
	DiscountTypeCart,
}

func (t DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
