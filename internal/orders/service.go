package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/email"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/paypal"
)

const (
	finalizeLockScope      = "finalize"
	defaultFinalizeLockTTL = 30 * time.Second
)

// errAlreadyComplete aborts the finalize transaction when another caller
// marked the order complete first.
var errAlreadyComplete = errors.New("order already complete")

// Pricer prices a cart for a caller. cart.Service satisfies it.
type Pricer interface {
	Quote(ctx context.Context, userID uuid.UUID, req cart.Request) (*cart.Quote, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Locker guards finalize so concurrent calls for one transaction cannot
// capture twice.
type Locker interface {
	AcquireLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, scope, id string) error
}

// EmailOptions configures the confirmation email.
type EmailOptions struct {
	PublicHost     string
	Subject        string
	SupportAddress string
}

type Service interface {
	Start(ctx context.Context, userID uuid.UUID, input StartInput) (*Started, error)
	Finalize(ctx context.Context, userID uuid.UUID, transactionID string) (*models.Order, error)
	FinalizeFree(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (*models.Order, error)

	Search(ctx context.Context, userID uuid.UUID, page pagination.Params) (pagination.Page[models.Order], error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	GetFull(ctx context.Context, userID, orderID uuid.UUID) (*OrderFull, error)
	Items(ctx context.Context, userID, orderID uuid.UUID) ([]models.Product, error)
	FilesByUser(ctx context.Context, userID uuid.UUID) ([]models.ProductFile, error)
	FilesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductFile, error)

	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Order, error)
	Update(ctx context.Context, userID, orderID uuid.UUID, input UpdateInput) (*models.Order, error)
	Remove(ctx context.Context, userID, orderID uuid.UUID) error
}

type ServiceParams struct {
	Repo     *Repository
	Tx       db.TxRunner
	Pricer   Pricer
	Payments paypal.PaymentProcessor
	Users    userLookup
	Outbox   outboxPublisher
	Mailer   email.Sender
	Email    EmailOptions
	Logger   *logger.Logger

	// Optional.
	Locker     Locker
	LockTTL    time.Duration
	Metrics    *metrics.CheckoutMetrics
	Validators []FreeOrderValidator
}

type service struct {
	repo       *Repository
	tx         db.TxRunner
	pricer     Pricer
	payments   paypal.PaymentProcessor
	users      userLookup
	outbox     outboxPublisher
	mailer     email.Sender
	email      EmailOptions
	logg       *logger.Logger
	locker     Locker
	lockTTL    time.Duration
	metrics    *metrics.CheckoutMetrics
	validators []FreeOrderValidator
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("orders repository required")
	case params.Tx == nil:
		return nil, errors.New("transaction runner required")
	case params.Pricer == nil:
		return nil, errors.New("cart pricer required")
	case params.Payments == nil:
		return nil, errors.New("payment processor required")
	case params.Users == nil:
		return nil, errors.New("user lookup required")
	case params.Outbox == nil:
		return nil, errors.New("outbox publisher required")
	case params.Mailer == nil:
		return nil, errors.New("mailer required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	validators := params.Validators
	if validators == nil {
		validators = DefaultFreeOrderValidators()
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultFinalizeLockTTL
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		pricer:     params.Pricer,
		payments:   params.Payments,
		users:      params.Users,
		outbox:     params.Outbox,
		mailer:     params.Mailer,
		email:      params.Email,
		logg:       params.Logger,
		locker:     params.Locker,
		lockTTL:    ttl,
		metrics:    params.Metrics,
		validators: validators,
		now:        time.Now,
	}, nil
}

// Start prices the cart, opens a PayPal order for the total and records a
// pending order with one line item per product.
func (s *service) Start(ctx context.Context, userID uuid.UUID, input StartInput) (started *Started, err error) {
	defer s.observe(metrics.StageStart, s.now(), &err)
	ctx = s.logg.WithUserID(ctx, userID.String())

	quote, err := s.pricer.Quote(ctx, userID, cart.Request{
		ProductIDs: dedupeIDs(input.ProductIDs),
		CouponCode: input.CouponCode,
	})
	if err != nil {
		return nil, err
	}
	if len(quote.Products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no products in the order")
	}

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     enums.OrderStatusPending,
		Subtotal:   quote.Totals.Subtotal,
		Discount:   quote.Totals.Discount,
		Total:      quote.Totals.Total,
		CouponCode: optionalString(input.CouponCode),
	}

	items := make([]paypal.Item, 0, len(quote.Products))
	for _, p := range quote.Products {
		items = append(items, paypal.Item{SKU: p.SKU, Name: p.Name, Price: p.Price})
	}
	intent, err := s.payments.CreateOrder(ctx, paypal.CreateOrderRequest{
		ReferenceID: order.ID.String(),
		Items:       items,
		Total:       order.Total,
	})
	if err != nil {
		return nil, asDependency(err, "create payment order")
	}
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "Failed to create order")
	}
	order.TransactionID = &intent.ID

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order, productIDsOf(quote.Products))
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"transaction_id": intent.ID,
		"total":          order.Total.StringFixed(2),
	}), "order.started")
	return &Started{Order: *order, ApproveURL: intent.ApproveURL}, nil
}

// Finalize captures payment for the order behind transactionID. Calling it
// again for a complete order returns that order without touching PayPal.
func (s *service) Finalize(ctx context.Context, userID uuid.UUID, transactionID string) (order *models.Order, err error) {
	defer s.observe(metrics.StageFinalize, s.now(), &err)
	ctx = s.logg.WithUserID(ctx, userID.String())

	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, Reject("Order has no transaction ID")
	}

	order, err = s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, mapLookupErr(err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.IsComplete() {
		s.metrics.IncReplay()
		return order, nil
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, finalizeLockScope, transactionID, s.lockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire finalize lock")
		}
		if !acquired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already being finalized")
		}
		defer func() {
			if relErr := s.locker.ReleaseLock(ctx, finalizeLockScope, transactionID); relErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "order.finalize_unlock_failed")
			}
		}()

		// A finalize that held the lock before us may have completed it.
		order, err = s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, mapLookupErr(err, "reload order")
		}
		if order.IsComplete() {
			s.metrics.IncReplay()
			return order, nil
		}
	}

	capture, err := s.payments.CaptureOrder(ctx, transactionID)
	if err != nil {
		return nil, asDependency(err, "capture payment")
	}
	if !capture.Completed() {
		status := ""
		if capture != nil {
			status = capture.Status
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment was not captured").
			WithDetails(map[string]string{"status": status})
	}

	products, err := s.repo.Items.Get(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.repo.WithTx(tx).MarkComplete(ctx, order.ID)
		if err != nil {
			return err
		}
		if !changed {
			return errAlreadyComplete
		}
		return s.emitCompleted(ctx, tx, order, products, false)
	})
	if errors.Is(err, errAlreadyComplete) {
		s.metrics.IncReplay()
		order, err = s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, mapLookupErr(err, "reload order")
		}
		return order, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	order.Status = enums.OrderStatusComplete

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"transaction_id": transactionID,
		"captures":       capture.CaptureIDs,
	}), "order.finalized")
	s.sendConfirmation(ctx, order, products)
	return order, nil
}

// FinalizeFree records an already complete order when every validator accepts
// it. Nothing is written when a validator refuses.
func (s *service) FinalizeFree(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (order *models.Order, err error) {
	defer s.observe(metrics.StageFinalizeFree, s.now(), &err)
	ctx = s.logg.WithUserID(ctx, userID.String())

	quote, err := s.pricer.Quote(ctx, userID, cart.Request{ProductIDs: dedupeIDs(productIDs)})
	if err != nil {
		return nil, err
	}
	candidate := FreeOrder{UserID: userID, Products: quote.Products, Totals: quote.Totals}
	for _, validate := range s.validators {
		if err := validate(ctx, candidate); err != nil {
			return nil, err
		}
	}

	order = &models.Order{
		UserID:   userID,
		Status:   enums.OrderStatusComplete,
		Subtotal: quote.Totals.Subtotal,
		Discount: quote.Totals.Discount,
		Total:    quote.Totals.Total,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order, productIDsOf(quote.Products)); err != nil {
			return err
		}
		return s.emitCompleted(ctx, tx, order, quote.Products, true)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save free order")
	}

	s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID.String()), "order.finalized_free")
	s.sendConfirmation(ctx, order, quote.Products)
	return order, nil
}

func (s *service) emitCompleted(ctx context.Context, tx *gorm.DB, order *models.Order, products []models.Product, free bool) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID},
		Data: payloads.OrderCompletedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			TransactionID: order.TransactionID,
			CouponCode:    order.CouponCode,
			ProductIDs:    productIDsOf(products),
			Subtotal:      order.Subtotal,
			Discount:      order.Discount,
			Total:         order.Total,
			Free:          free,
			CompletedAt:   s.now().UTC(),
		},
	})
}

// sendConfirmation mails the purchaser and the support inbox. The order is
// already complete, so failures are logged rather than returned.
func (s *service) sendConfirmation(ctx context.Context, order *models.Order, products []models.Product) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		s.logg.Error(ctx, "order.confirmation_user_lookup_failed", err)
		return
	}

	lines := make([]email.OrderLine, 0, len(products))
	for _, p := range products {
		lines = append(lines, email.OrderLine{Name: p.Name, Price: p.Price})
	}
	coupon := ""
	if order.CouponCode != nil {
		coupon = *order.CouponCode
	}
	html, err := email.RenderOrderConfirmation(email.OrderConfirmation{
		PublicHost:   s.email.PublicHost,
		CustomerName: user.DisplayName(),
		OrderID:      order.ID.String(),
		CouponCode:   coupon,
		Lines:        lines,
		Subtotal:     order.Subtotal,
		Discount:     order.Discount,
		Total:        order.Total,
	})
	if err != nil {
		s.logg.Error(ctx, "order.confirmation_render_failed", err)
		return
	}

	recipients := []string{user.Email}
	if s.email.SupportAddress != "" {
		recipients = append(recipients, s.email.SupportAddress)
	}
	if err := s.mailer.Send(ctx, email.Message{Subject: s.email.Subject, HTML: html, To: recipients}); err != nil {
		s.logg.Error(ctx, "order.confirmation_send_failed", err)
	}
}

func (s *service) Search(ctx context.Context, userID uuid.UUID, page pagination.Params) (pagination.Page[models.Order], error) {
	page = page.Normalize()
	rows, total, err := s.repo.SearchComplete(ctx, userID, page)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search orders")
	}
	return pagination.NewPage(rows, page, total), nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		return nil, mapLookupErr(err, "load order")
	}
	return order, nil
}

// GetFull returns the order with its products and every file the purchase
// unlocks.
func (s *service) GetFull(ctx context.Context, userID, orderID uuid.UUID) (*OrderFull, error) {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.Items.Get(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	files, err := s.FilesByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Product{}
	}
	return &OrderFull{Order: *order, Items: items, Files: files}, nil
}

func (s *service) Items(ctx context.Context, userID, orderID uuid.UUID) ([]models.Product, error) {
	if _, err := s.Get(ctx, userID, orderID); err != nil {
		return nil, err
	}
	items, err := s.repo.Items.Get(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return items, nil
}

// Create records an order directly, bypassing payment. Totals must satisfy
// total = subtotal - discount with discount <= subtotal.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Order, error) {
	status := input.Status
	if status == "" {
		status = enums.OrderStatusPending
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	if input.Subtotal.IsNegative() || input.Discount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "totals must not be negative")
	}
	if input.Discount.GreaterThan(input.Subtotal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
	}

	order := &models.Order{
		UserID:        userID,
		Status:        status,
		Subtotal:      input.Subtotal.Truncate(2),
		Discount:      input.Discount.Truncate(2),
		CouponCode:    input.CouponCode,
		TransactionID: input.TransactionID,
	}
	order.Total = order.Subtotal.Sub(order.Discount)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order, dedupeIDs(input.ProductIDs))
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func (s *service) Update(ctx context.Context, userID, orderID uuid.UUID, input UpdateInput) (*models.Order, error) {
	changes := map[string]any{}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", *input.Status)
		}
		changes["status"] = *input.Status
	}
	if input.CouponCode != nil {
		changes["coupon_code"] = optionalString(*input.CouponCode)
	}
	if input.TransactionID != nil {
		changes["transaction_id"] = optionalString(*input.TransactionID)
	}
	if len(changes) > 0 {
		if err := s.repo.Update(ctx, userID, orderID, changes); err != nil {
			return nil, mapLookupErr(err, "update order")
		}
	}
	return s.Get(ctx, userID, orderID)
}

func (s *service) Remove(ctx context.Context, userID, orderID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, userID, orderID)
	})
	if err != nil {
		return mapLookupErr(err, "remove order")
	}
	return nil
}

func (s *service) observe(stage string, started time.Time, errp *error) {
	code := ""
	if *errp != nil {
		code = string(pkgerrors.CodeOf(*errp))
	}
	s.metrics.Observe(stage, s.now().Sub(started), code)
}

func mapLookupErr(err error, action string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

// asDependency keeps typed errors from the processor and wraps the rest.
func asDependency(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s failed", action))
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func productIDsOf(products []models.Product) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
