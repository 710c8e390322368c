package permissions

// Permission names checked by the HTTP layer and by gated discounts.
const (
	ProductView     = "product.view"
	ProductCreate   = "product.create"
	ProductUpdate   = "product.update"
	ProductDelete   = "product.delete"
	ProductDisabled = "product.disabled"

	DiscountView   = "discount.view"
	DiscountCreate = "discount.create"
	DiscountUpdate = "discount.update"
	DiscountDelete = "discount.delete"

	OrderView     = "order.view"
	OrderCreate   = "order.create"
	OrderPurchase = "order.purchase"
	OrderUpdate   = "order.update"
	OrderDelete   = "order.delete"

	WishlistView   = "wishlist.view"
	WishlistCreate = "wishlist.create"
	WishlistDelete = "wishlist.delete"

	MediaView   = "media.view"
	MediaUpdate = "media.update"
	MediaDelete = "media.delete"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	// RolePublic is what anonymous callers resolve to; signed in users get it too.
	RolePublic = "public"
)
