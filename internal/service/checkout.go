package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/checkoutcore/internal/domain"
	"github.com/utafrali/checkoutcore/internal/metrics"
	"github.com/utafrali/checkoutcore/internal/payment"
	"github.com/utafrali/checkoutcore/internal/pricing"
	"github.com/utafrali/checkoutcore/internal/repository"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/logger"
	"github.com/utafrali/checkoutcore/pkg/tracing"
)

const tracerName = "github.com/utafrali/checkoutcore/internal/service"

// Release reasons used for metrics and logs.
const (
	releaseAddToCart = "add_to_cart"
	releaseAttempt   = "attempt_aborted"
	releasePayment   = "payment_failed"
	releaseClear     = "cart_cleared"
)

// DiscountFunc computes a discount for a priced cart. The result is clamped
// to [0, subtotal] by the caller.
type DiscountFunc func(items []pricing.Item, identity domain.Identity, now time.Time) int64

// EventPublisher publishes checkout domain events. *event.Producer satisfies
// it, including as a nil pointer.
type EventPublisher interface {
	PublishOrderCommitted(ctx context.Context, order *domain.Order) error
	PublishCheckoutFailed(ctx context.Context, attempt *domain.CheckoutAttempt) error
	PublishCompensationFailed(ctx context.Context, sessionID, productID string, qty int, cause error) error
}

// Stores groups the persistence ports used by the checkout service.
type Stores struct {
	Inventory repository.InventoryStore
	Carts     repository.CartStore
	Ledger    repository.OrderLedger
	Attempts  repository.AttemptRepository
}

// Timeouts holds per-step timeouts. A zero value means no step timeout.
type Timeouts struct {
	// Payment bounds the gateway charge only.
	Payment time.Duration
	// Compensation bounds releases and the post-charge writes, which run
	// detached from the caller's cancellation.
	Compensation time.Duration
}

// Option customises a CheckoutService.
type Option func(*CheckoutService)

// WithDiscount sets the discount collaborator.
func WithDiscount(fn DiscountFunc) Option {
	return func(s *CheckoutService) { s.discount = fn }
}

// WithMetrics records checkout instruments.
func WithMetrics(m *metrics.Checkout) Option {
	return func(s *CheckoutService) { s.metrics = m }
}

// WithTimeouts sets the step timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *CheckoutService) { s.timeouts = t }
}

// WithClock overrides the time source used for pricing and records.
func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) { s.now = now }
}

// CheckoutService sequences inventory, cart, payment and ledger calls for
// addToCart and checkout and owns the compensation policy.
type CheckoutService struct {
	stores   Stores
	gateway  payment.Gateway
	events   EventPublisher
	logger   *slog.Logger
	discount DiscountFunc
	metrics  *metrics.Checkout
	timeouts Timeouts
	locks    *sessionLocks
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service. events may be nil.
func NewCheckoutService(stores Stores, gateway payment.Gateway, events EventPublisher, logger *slog.Logger, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		stores:  stores,
		gateway: gateway,
		events:  events,
		logger:  logger,
		timeouts: Timeouts{
			Compensation: 10 * time.Second,
		},
		locks:  newSessionLocks(),
		tracer: tracing.Tracer(tracerName),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if events == nil {
		s.events = noopPublisher{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCommitted(context.Context, *domain.Order) error { return nil }

func (noopPublisher) PublishCheckoutFailed(context.Context, *domain.CheckoutAttempt) error {
	return nil
}

func (noopPublisher) PublishCompensationFailed(context.Context, string, string, int, error) error {
	return nil
}

// hold is what one cart entry holds against inventory during an attempt.
type hold struct {
	productID string
	prior     int // Reserved before the attempt
	acquired  int // reserved by the attempt itself
}

// AddToCart reserves qty units and records them in the session's cart. On any
// failure nothing stays reserved.
func (s *CheckoutService) AddToCart(ctx context.Context, sessionID, productID string, qty int) (view *domain.CartView, err error) {
	if sessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if qty < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}

	ctx, span := s.tracer.Start(ctx, "checkout.AddToCart", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.reserve(ctx, productID, qty); err != nil {
		return nil, fmt.Errorf("reserve %s: %w", productID, err)
	}

	// A caller that gave up must not be left with a reservation it never saw.
	if err := ctx.Err(); err != nil {
		return nil, s.undoAdd(ctx, sessionID, productID, qty, err)
	}

	// Stock is held from here on; a cancel must not split the cart write from it.
	actx, cancel := s.detached(ctx)
	err = s.stores.Carts.Append(actx, sessionID, productID, qty)
	cancel()
	if err != nil {
		return nil, s.undoAdd(ctx, sessionID, productID, qty, fmt.Errorf("append to cart: %w", err))
	}

	entries, err := s.stores.Carts.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
	)

	return domain.NewCartView(sessionID, entries), nil
}

// undoAdd releases a reservation made by AddToCart and returns cause, or a
// compensation failure joined with cause if the release failed.
func (s *CheckoutService) undoAdd(ctx context.Context, sessionID, productID string, qty int, cause error) error {
	cctx, cancel := s.detached(ctx)
	defer cancel()

	if err := s.stores.Inventory.Release(cctx, productID, qty); err != nil {
		return errors.Join(s.compensationFailed(cctx, sessionID, productID, qty, err), cause)
	}
	s.metrics.ObserveRelease(releaseAddToCart, qty)
	return cause
}

// Checkout prices the session's cart, charges identity.Credential and records
// the order. If payment does not succeed every unit the cart holds is returned
// to inventory and the cart is kept for a retry.
func (s *CheckoutService) Checkout(ctx context.Context, identity domain.Identity) (order *domain.Order, err error) {
	if identity.SessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	if identity.Credential == "" {
		return nil, apperrors.Unauthenticated("payment credential is required")
	}
	sessionID := identity.SessionID

	ctx, span := s.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
	))
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := logger.WithContext(ctx, s.logger)
	attempt := domain.NewCheckoutAttempt(uuid.New().String(), sessionID, s.now())
	span.SetAttributes(attribute.String("checkout.attempt_id", attempt.ID))

	entries, err := s.stores.Carts.Snapshot(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("snapshot cart: %w", err)
		s.fail(ctx, attempt, err)
		s.metrics.ObserveCheckout(metrics.OutcomeFailed)
		return nil, err
	}
	if len(entries) == 0 {
		err := apperrors.EmptyCart(sessionID)
		s.fail(ctx, attempt, err)
		s.metrics.ObserveCheckout(metrics.OutcomeEmptyCart)
		return nil, err
	}

	s.transition(ctx, attempt, domain.AttemptPricing)

	holds, err := s.reserveDeficits(ctx, sessionID, entries)
	attempt.Record(domain.StepReserveDeficit, err, s.now())
	if err != nil {
		return nil, s.abort(ctx, attempt, holds, false, err)
	}

	order, err = s.priceCart(ctx, identity, entries)
	attempt.Record(domain.StepPriceCart, err, s.now())
	if err != nil {
		return nil, s.abort(ctx, attempt, holds, false, err)
	}
	attempt.Amount = order.Total

	s.transition(ctx, attempt, domain.AttemptPaying)

	txnID, err := s.charge(ctx, order.Total, identity.Credential)
	attempt.Record(domain.StepCharge, err, s.now())
	if err != nil {
		return nil, s.abort(ctx, attempt, holds, true, s.paymentError(ctx, err))
	}
	order.TransactionID = txnID
	attempt.TransactionID = txnID

	// The charge went through; the remaining writes must not be abandoned
	// because the caller stopped waiting.
	wctx, cancel := s.detached(ctx)
	defer cancel()

	order.Status = domain.OrderStatusCommitted
	if err := s.stores.Ledger.Append(wctx, order); err != nil {
		attempt.Record(domain.StepRecordOrder, err, s.now())
		attempt.FailureKind = string(apperrors.KindOf(err))
		attempt.FailureReason = "order not recorded after successful charge"
		s.saveAttempt(wctx, attempt)
		log.ErrorContext(ctx, "order not recorded after successful charge",
			slog.String("attempt_id", attempt.ID),
			slog.String("transaction_id", txnID),
			slog.Int64("amount", order.Total),
			slog.String("error", err.Error()),
		)
		s.metrics.ObserveCheckout(metrics.OutcomeFailed)
		return nil, apperrors.Internal(fmt.Errorf("record order: %w", err))
	}
	attempt.Record(domain.StepRecordOrder, nil, s.now())
	attempt.OrderID = order.ID

	if err := s.stores.Carts.Clear(wctx, sessionID); err != nil {
		log.ErrorContext(ctx, "failed to clear cart after commit",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.transition(wctx, attempt, domain.AttemptCommitted)
	s.saveAttempt(wctx, attempt)

	if err := s.events.PublishOrderCommitted(wctx, order); err != nil {
		log.ErrorContext(ctx, "failed to publish order.committed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.ObserveCheckout(metrics.OutcomeCommitted)

	log.InfoContext(ctx, "checkout committed",
		slog.String("order_id", order.ID),
		slog.String("transaction_id", txnID),
		slog.Int64("total", order.Total),
		slog.Int("lines", len(order.Lines)),
	)

	return order, nil
}

// reserveDeficits reserves what each entry is missing, in cart order. A
// failure stops at the failing entry; the returned holds cover every entry up
// to and excluding it.
func (s *CheckoutService) reserveDeficits(ctx context.Context, sessionID string, entries []domain.CartEntry) (holds []hold, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.reserve_deficit")
	defer func() { tracing.EndSpan(span, err) }()

	holds = make([]hold, 0, len(entries))
	for _, e := range entries {
		h := hold{productID: e.ProductID, prior: e.Reserved}
		if d := e.Deficit(); d > 0 {
			if err := s.reserve(ctx, e.ProductID, d); err != nil {
				if apperrors.Is(err, apperrors.KindNotFound) {
					err = apperrors.ProductUnavailable(e.ProductID)
				}
				return holds, fmt.Errorf("reserve %s: %w", e.ProductID, err)
			}
			h.acquired = d
			s.logger.DebugContext(ctx, "re-reserved cart deficit",
				slog.String("session_id", sessionID),
				slog.String("product_id", e.ProductID),
				slog.Int("quantity", d),
			)
		}
		holds = append(holds, h)
	}
	return holds, nil
}

// priceCart re-reads every product concurrently and builds the order with
// lines in cart order.
func (s *CheckoutService) priceCart(ctx context.Context, identity domain.Identity, entries []domain.CartEntry) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.price_cart")
	defer func() { tracing.EndSpan(span, err) }()

	products := make([]*domain.Product, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			p, err := s.stores.Inventory.Get(gctx, e.ProductID)
			if err != nil {
				if apperrors.Is(err, apperrors.KindNotFound) {
					return apperrors.ProductUnavailable(e.ProductID)
				}
				return fmt.Errorf("get product %s: %w", e.ProductID, err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	order = &domain.Order{
		ID:        uuid.New().String(),
		SessionID: identity.SessionID,
		UserID:    identity.UserID,
		Lines:     make([]domain.OrderLine, len(entries)),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
	}
	items := make([]pricing.Item, len(entries))
	for i, e := range entries {
		p := products[i]
		order.Lines[i] = domain.OrderLine{
			ProductID:           e.ProductID,
			Title:               p.Title,
			Quantity:            e.Quantity,
			UnitPriceAtCheckout: p.UnitPrice,
		}
		items[i] = pricing.Item{
			ProductID: e.ProductID,
			Category:  p.Category,
			UnitPrice: p.UnitPrice,
			Quantity:  e.Quantity,
		}
	}

	var discount int64
	if s.discount != nil {
		discount = s.discount(items, identity, now)
	}
	order.ApplyDiscount(discount)

	span.SetAttributes(
		attribute.Int64("order.subtotal", order.Subtotal),
		attribute.Int64("order.discount", order.Discount),
		attribute.Int64("order.total", order.Total),
	)
	return order, nil
}

// charge calls the gateway under the payment timeout. A zero total is not
// charged.
func (s *CheckoutService) charge(ctx context.Context, amount int64, credential string) (txnID string, err error) {
	if amount == 0 {
		return "", nil
	}

	ctx, span := s.tracer.Start(ctx, "checkout.charge", trace.WithAttributes(
		attribute.String("payment.provider", s.gateway.Name()),
		attribute.Int64("payment.amount", amount),
	))
	defer func() { tracing.EndSpan(span, err) }()

	if s.timeouts.Payment > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Payment)
		defer cancel()
	}

	start := time.Now()
	c, err := s.gateway.Charge(ctx, amount, credential)
	result := "success"
	if err != nil {
		result = "failure"
	}
	s.metrics.ObservePayment(s.gateway.Name(), result, time.Since(start))
	if err != nil {
		return "", err
	}
	return c.TransactionID, nil
}

// paymentError normalises a failed charge. Declines pass through, a caller
// cancellation is returned as such and anything else is reported as a
// decline carrying the gateway's detail.
func (s *CheckoutService) paymentError(ctx context.Context, err error) error {
	switch {
	case apperrors.Is(err, apperrors.KindPaymentDeclined):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("checkout cancelled while awaiting payment: %w", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.PaymentDeclined("payment timed out")
	default:
		declined := apperrors.PaymentDeclined(err.Error())
		declined.Err = errors.Join(apperrors.ErrPaymentDeclined, err)
		return declined
	}
}

// abort compensates a failed attempt and returns the error to report. With
// all set every unit the cart holds is released, otherwise only what the
// attempt acquired.
func (s *CheckoutService) abort(ctx context.Context, attempt *domain.CheckoutAttempt, holds []hold, all bool, cause error) error {
	log := logger.WithContext(ctx, s.logger)
	cctx, cancel := s.detached(ctx)
	defer cancel()

	s.transition(cctx, attempt, domain.AttemptCompensating)

	reason := releaseAttempt
	if all {
		reason = releasePayment
	}
	compErr := s.releaseHolds(cctx, attempt.SessionID, holds, all, reason)
	if compErr != nil {
		attempt.Record(domain.StepReleaseHolds, compErr, s.now())
	} else {
		attempt.RecordCompensated(domain.StepReleaseHolds, s.now())
	}

	result := cause
	if compErr != nil {
		result = errors.Join(compErr, cause)
	}
	s.fail(cctx, attempt, result)

	outcome := metrics.OutcomeFailed
	switch {
	case compErr != nil:
		outcome = metrics.OutcomeCompensationFailed
	case apperrors.Is(cause, apperrors.KindPaymentDeclined):
		outcome = metrics.OutcomeDeclined
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		outcome = metrics.OutcomeCancelled
	}
	s.metrics.ObserveCheckout(outcome)

	log.WarnContext(ctx, "checkout failed",
		slog.String("attempt_id", attempt.ID),
		slog.String("outcome", outcome),
		slog.String("error", cause.Error()),
	)
	return result
}

// releaseHolds returns units to inventory and records what each entry still
// holds. It keeps going after a failed release so one drifted product does
// not strand the others.
func (s *CheckoutService) releaseHolds(ctx context.Context, sessionID string, holds []hold, all bool, reason string) error {
	var errs []error
	for _, h := range holds {
		qty := h.acquired
		if all {
			qty += h.prior
		}
		if qty == 0 {
			continue
		}

		held := h.prior + h.acquired
		if err := s.stores.Inventory.Release(ctx, h.productID, qty); err != nil {
			errs = append(errs, s.compensationFailed(ctx, sessionID, h.productID, qty, err))
		} else {
			s.metrics.ObserveRelease(reason, qty)
			held -= qty
		}

		if held == h.prior {
			continue
		}
		if err := s.stores.Carts.SetReserved(ctx, sessionID, h.productID, held); err != nil {
			s.logger.ErrorContext(ctx, "failed to record cart reservation",
				slog.String("session_id", sessionID),
				slog.String("product_id", h.productID),
				slog.Int("reserved", held),
				slog.String("error", err.Error()),
			)
		}
	}
	return errors.Join(errs...)
}

// compensationFailed escalates a failed release. Stock for productID is now
// short by qty until an operator corrects it.
func (s *CheckoutService) compensationFailed(ctx context.Context, sessionID, productID string, qty int, cause error) error {
	s.metrics.ObserveCompensationFailure()
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, "compensating release failed, stock count drifted",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("quantity", qty),
		slog.String("error", cause.Error()),
	)
	if err := s.events.PublishCompensationFailed(ctx, sessionID, productID, qty, cause); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish inventory.compensation_failed event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
	return apperrors.CompensationFailed(productID, qty, cause)
}

func (s *CheckoutService) fail(ctx context.Context, attempt *domain.CheckoutAttempt, cause error) {
	attempt.FailureKind = string(apperrors.KindOf(cause))
	attempt.FailureReason = cause.Error()
	s.transition(ctx, attempt, domain.AttemptFailed)
	s.saveAttempt(ctx, attempt)

	if err := s.events.PublishCheckoutFailed(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) transition(ctx context.Context, attempt *domain.CheckoutAttempt, next domain.AttemptState) {
	if err := attempt.TransitionTo(next, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "checkout attempt transition rejected",
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CheckoutService) saveAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) {
	if err := s.stores.Attempts.Save(ctx, attempt); err != nil {
		s.logger.WarnContext(ctx, "failed to save checkout attempt",
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
	}
}

// reserve calls the inventory store and counts the result.
func (s *CheckoutService) reserve(ctx context.Context, productID string, qty int) error {
	err := s.stores.Inventory.Reserve(ctx, productID, qty)
	switch {
	case err == nil:
		s.metrics.ObserveReservation(metrics.ResultReserved)
	case apperrors.Is(err, apperrors.KindOutOfStock):
		s.metrics.ObserveReservation(metrics.ResultOutOfStock)
	case apperrors.Is(err, apperrors.KindNotFound):
		s.metrics.ObserveReservation(metrics.ResultNotFound)
	default:
		s.metrics.ObserveReservation(metrics.ResultError)
	}
	return err
}

// detached returns a context that survives the caller's cancellation but
// keeps its values, bounded by the compensation timeout.
func (s *CheckoutService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.timeouts.Compensation > 0 {
		return context.WithTimeout(ctx, s.timeouts.Compensation)
	}
	return ctx, func() {}
}

// GetCart returns the session's cart.
func (s *CheckoutService) GetCart(ctx context.Context, sessionID string) (*domain.CartView, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	entries, err := s.stores.Carts.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	return domain.NewCartView(sessionID, entries), nil
}

// ClearCart returns every unit the cart holds to inventory and empties it. If
// a release fails the cart is kept with the unreleased holds so the call can
// be repeated.
func (s *CheckoutService) ClearCart(ctx context.Context, sessionID string) (err error) {
	if sessionID == "" {
		return apperrors.Unauthenticated("session id is required")
	}

	ctx, span := s.tracer.Start(ctx, "checkout.ClearCart", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
	))
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := s.stores.Carts.Snapshot(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("snapshot cart: %w", err)
	}

	cctx, cancel := s.detached(ctx)
	defer cancel()

	holds := make([]hold, 0, len(entries))
	for _, e := range entries {
		holds = append(holds, hold{productID: e.ProductID, prior: e.Reserved})
	}
	if err := s.releaseHolds(cctx, sessionID, holds, true, releaseClear); err != nil {
		return err
	}
	if err := s.stores.Carts.Clear(cctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("session_id", sessionID),
		slog.Int("entries", len(entries)),
	)
	return nil
}

// ListOrders returns the session's committed orders in commit order.
func (s *CheckoutService) ListOrders(ctx context.Context, sessionID string) ([]domain.Order, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	orders, err := s.stores.Ledger.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetAttempt returns a checkout attempt. Attempts of other sessions are
// reported as not found.
func (s *CheckoutService) GetAttempt(ctx context.Context, sessionID, attemptID string) (*domain.CheckoutAttempt, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	a, err := s.stores.Attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get checkout attempt: %w", err)
	}
	if a.SessionID != sessionID {
		return nil, apperrors.NotFound("checkout attempt", attemptID)
	}
	return a, nil
}

// ListAttempts returns the session's checkout attempts, oldest first.
func (s *CheckoutService) ListAttempts(ctx context.Context, sessionID string) ([]domain.CheckoutAttempt, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthenticated("session id is required")
	}
	attempts, err := s.stores.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list checkout attempts: %w", err)
	}
	return attempts, nil
}
