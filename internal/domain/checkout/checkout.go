// Package checkout turns a cart (or a single buy-now line) into a priced,
// delivery-configured order and collects payment for it. The flow is
// two-phase: Prepare registers the order with the marketplace backend, Pay
// runs only after Prepare succeeded. The client-generated payment reference
// is created once per session and reused across retries so the backend never
// sees duplicate orders for one attempt.
package checkout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tribetrade/storefront/internal/domain/buyer"
	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/delivery"
	"github.com/tribetrade/storefront/internal/payment"
)

// Sentinel errors for checkout orchestration.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrSubmitInFlight  = errors.New("a submit attempt is already in flight")
	ErrCheckoutLocked  = errors.New("order already registered; delivery can no longer change")
	ErrNotSubmitted    = errors.New("checkout has not been submitted")

	// ErrStaleReference marks a backend rejection caused by a referenced
	// product or store that no longer exists. Order registry implementations
	// wrap their classified errors with it; the orchestrator reacts by
	// invalidating the cart.
	ErrStaleReference = errors.New("referenced product no longer exists")
)

// PaymentDeclinedError carries the literal gateway status of a non-successful
// payment so it can be shown to the buyer verbatim.
type PaymentDeclinedError struct {
	Status string
}

func (e *PaymentDeclinedError) Error() string {
	status := e.Status
	if status == "" {
		status = "Unknown"
	}
	return fmt.Sprintf("payment validation failed, status: %s", status)
}

// OrderLine is one item of an order registration.
type OrderLine struct {
	Product  string
	Store    string
	Quantity int
}

// OrderRegistration is the Prepare-phase payload. Address and phone are set
// only for plug delivery; every other mode sends explicit nulls.
type OrderRegistration struct {
	TotalAmount     string
	PaymentRef      string
	DeliveryMethod  delivery.Mode
	DeliveryAddress *string
	DeliveryPhone   *string
	Items           []OrderLine
}

// RegisteredOrder is the backend's acknowledgement of a registration.
type RegisteredOrder struct {
	ID         int64
	PaymentRef string
}

// OrderRegistry registers orders with the marketplace backend on behalf of
// the buyer identified by token.
type OrderRegistry interface {
	Register(ctx context.Context, token string, reg OrderRegistration) (*RegisteredOrder, error)
}

// PaymentGateway initiates hosted payment sessions.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, ch payment.Charge) (*payment.ChargeSession, error)
}

// Attempt is the local record of a submit, keyed by payment reference.
type Attempt struct {
	PaymentRef     string
	BuyerID        string
	OrderID        int64
	TotalAmount    decimal.Decimal
	DeliveryMethod delivery.Mode
}

// AttemptLog mirrors PENDING_PAYMENT/PAID transitions locally for
// reconciliation. The order state machine itself is backend-owned.
type AttemptLog interface {
	RecordPending(ctx context.Context, a Attempt) error
	MarkPaid(ctx context.Context, paymentRef string) error
}

// ProductChecker answers whether a product id may still exist. Implementations
// give definite negatives only (a bloom snapshot); false means the product is
// certainly gone from the snapshot.
type ProductChecker interface {
	MaybeLive(productID string) bool
}

// Deps are the collaborators an Orchestrator needs. Catalog is optional;
// when nil the stale pre-check is disabled.
type Deps struct {
	Carts    *cart.Service
	Orders   OrderRegistry
	Payments PaymentGateway
	Attempts AttemptLog
	Catalog  ProductChecker
	Sessions *SessionStore
}

// Orchestrator owns checkout sessions and the two-phase submit protocol.
type Orchestrator struct {
	carts    *cart.Service
	orders   OrderRegistry
	payments PaymentGateway
	attempts AttemptLog
	catalog  ProductChecker
	sessions *SessionStore

	now     func() time.Time
	randInt func(n int) int
}

// NewOrchestrator creates an Orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		carts:    deps.Carts,
		orders:   deps.Orders,
		payments: deps.Payments,
		attempts: deps.Attempts,
		catalog:  deps.Catalog,
		sessions: deps.Sessions,
		now:      time.Now,
		randInt:  rand.IntN,
	}
}

// Begin opens a checkout session from the buyer's cart, or from a single
// ad-hoc line for buy-now flows that bypass the cart. The default delivery
// mode follows the buyer/seller campus comparison, and the payment reference
// is fixed here for the lifetime of the session.
func (o *Orchestrator) Begin(ctx context.Context, b buyer.Profile, token string, single *cart.Line) (View, error) {
	var (
		lines      []cart.Line
		singleItem bool
	)
	if single != nil {
		l := *single
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		lines = []cart.Line{l}
		singleItem = true
	} else {
		c, err := o.carts.Get(ctx, b.ID)
		if err != nil {
			return View{}, err
		}
		lines = c.Lines
	}
	if len(lines) == 0 {
		return View{}, ErrEmptyCart
	}

	same := delivery.SameCampus(b.InstitutionID, lines)
	now := o.now()

	s := &Session{
		ID:         uuid.New().String(),
		Buyer:      b,
		Token:      token,
		Lines:      lines,
		SingleItem: singleItem,
		SameCampus: same,
		Mode:       delivery.DefaultMode(same),
		PaymentRef: newPaymentRef(now, o.randInt(1000)),
		State:      StateOpen,
		CreatedAt:  now,
	}
	o.sessions.Put(s)
	return s.View(), nil
}

// Session returns a read-consistent view of the buyer's live session.
func (o *Orchestrator) Session(buyerID, sessionID string) (View, error) {
	s, err := o.lookup(buyerID, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// lookup resolves the buyer's live session for mutation.
func (o *Orchestrator) lookup(buyerID, sessionID string) (*Session, error) {
	s, ok := o.sessions.Get(sessionID)
	if !ok || s.Buyer.ID != buyerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SelectDelivery overrides the delivery mode and details. Only modes valid
// for the session's campus branch are accepted, and nothing may change once
// the order is registered (the submitted total must stay authoritative).
func (o *Orchestrator) SelectDelivery(buyerID, sessionID string, mode delivery.Mode, details delivery.Details) (View, error) {
	s, err := o.lookup(buyerID, sessionID)
	if err != nil {
		return View{}, err
	}
	if !s.tryAcquire() {
		return View{}, ErrSubmitInFlight
	}
	defer s.release()

	if s.State != StateOpen {
		return View{}, ErrCheckoutLocked
	}

	allowed := false
	for _, m := range delivery.AllowedModes(s.SameCampus) {
		if m == mode {
			allowed = true
			break
		}
	}
	if !allowed {
		return View{}, &delivery.ModeNotAllowedError{Mode: mode}
	}

	s.mu.Lock()
	s.Mode = mode
	s.Details = details
	s.mu.Unlock()
	return s.View(), nil
}

// SubmitResult is the outcome of a successful submit: the captured quote and
// the hosted payment session to send the buyer to.
type SubmitResult struct {
	Session     View
	Quote       Quote
	PaymentRef  string
	PaymentLink string
	OrderID     int64
}

// Submit runs the two-phase protocol for a session. An open session is
// validated, priced once, registered with the backend (Prepare), and handed
// to the payment gateway (Pay). A session already pending payment skips
// Prepare and re-initiates Pay with the captured quote and the same payment
// reference. Any Prepare failure aborts before Pay.
func (o *Orchestrator) Submit(ctx context.Context, buyerID, sessionID string) (*SubmitResult, error) {
	s, err := o.lookup(buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.tryAcquire() {
		return nil, ErrSubmitInFlight
	}
	defer s.release()

	if s.State == StatePaid {
		return nil, errors.Wrap(ErrCheckoutLocked, "already paid")
	}

	// Fail fast, before any network call.
	if err := delivery.Validate(s.Mode, s.SameCampus, s.Lines, s.Details); err != nil {
		return nil, err
	}

	if o.catalog != nil {
		for _, l := range s.Lines {
			if !o.catalog.MaybeLive(l.ProductID) {
				return nil, o.invalidateStale(ctx, s, errors.Wrapf(ErrStaleReference, "product %s", l.ProductID))
			}
		}
	}

	// The quote is captured exactly once, at Prepare time. Display, the
	// order amount, and the charge amount all read this one value; retries
	// reuse it untouched.
	if s.State == StateOpen {
		q := NewQuote(s.Lines, s.Mode)

		registered, err := o.orders.Register(ctx, s.Token, o.registration(s, q))
		if err != nil {
			if errors.Is(err, ErrStaleReference) {
				return nil, o.invalidateStale(ctx, s, err)
			}
			return nil, err
		}

		s.mu.Lock()
		s.Quote = q
		s.OrderID = registered.ID
		if registered.PaymentRef != "" {
			// The backend echoes the reference it stored; use its copy.
			s.PaymentRef = registered.PaymentRef
		}
		s.State = StatePendingPayment
		s.mu.Unlock()

		if o.attempts != nil {
			err := o.attempts.RecordPending(ctx, Attempt{
				PaymentRef:     s.PaymentRef,
				BuyerID:        s.Buyer.ID,
				OrderID:        s.OrderID,
				TotalAmount:    q.GrandTotal,
				DeliveryMethod: s.Mode,
			})
			if err != nil {
				return nil, errors.Wrap(err, "record attempt")
			}
		}
	}

	charge, err := o.payments.CreateCharge(ctx, payment.Charge{
		Reference: s.PaymentRef,
		Amount:    s.Quote.GrandTotal,
		Customer: payment.Customer{
			Email: s.Buyer.Email,
			Name:  s.Buyer.Username,
			Phone: s.Details.Phone,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create charge")
	}
	s.mu.Lock()
	s.PaymentLink = charge.Link
	s.mu.Unlock()

	v := s.View()
	return &SubmitResult{
		Session:     v,
		Quote:       v.Quote,
		PaymentRef:  v.PaymentRef,
		PaymentLink: v.PaymentLink,
		OrderID:     v.OrderID,
	}, nil
}

// PaymentOutcome is the result of a gateway callback.
type PaymentOutcome struct {
	Session View
	Paid    bool
	Status  string
}

// CompletePayment reconciles a gateway result into cart state. Only the
// exact statuses the gateway uses for settled charges count as success; on
// success the cart is cleared and the session discarded. Any other status is
// returned as a PaymentDeclinedError carrying the literal value, with no
// state change — the registered order stays pending backend-side and Pay may
// be retried.
func (o *Orchestrator) CompletePayment(ctx context.Context, buyerID, sessionID, status string) (*PaymentOutcome, error) {
	s, err := o.lookup(buyerID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.tryAcquire() {
		return nil, ErrSubmitInFlight
	}
	defer s.release()

	switch s.State {
	case StateOpen:
		return nil, ErrNotSubmitted
	case StatePaid:
		return &PaymentOutcome{Session: s.View(), Paid: true, Status: status}, nil
	}

	if !payment.IsSuccess(status) {
		return nil, &PaymentDeclinedError{Status: status}
	}

	if err := o.carts.Clear(ctx, s.Buyer.ID); err != nil {
		return nil, err
	}
	if o.attempts != nil {
		if err := o.attempts.MarkPaid(ctx, s.PaymentRef); err != nil {
			return nil, errors.Wrap(err, "mark attempt paid")
		}
	}

	s.mu.Lock()
	s.State = StatePaid
	s.mu.Unlock()
	o.sessions.Delete(s.ID)

	return &PaymentOutcome{Session: s.View(), Paid: true, Status: status}, nil
}

// registration builds the Prepare payload. Delivery address and phone travel
// only for plug delivery; other modes send explicit nulls.
func (o *Orchestrator) registration(s *Session, q Quote) OrderRegistration {
	var address, phone *string
	if s.Mode == delivery.PlugDelivery {
		a, p := s.Details.Address, s.Details.Phone
		address, phone = &a, &p
	}

	items := make([]OrderLine, len(s.Lines))
	for i, l := range s.Lines {
		items[i] = OrderLine{
			Product:  l.ProductID,
			Store:    l.StoreID,
			Quantity: l.Quantity,
		}
	}

	return OrderRegistration{
		TotalAmount:     q.WireAmount(),
		PaymentRef:      s.PaymentRef,
		DeliveryMethod:  s.Mode,
		DeliveryAddress: address,
		DeliveryPhone:   phone,
		Items:           items,
	}
}

// invalidateStale clears the buyer's cart and drops the session after a
// stale-reference failure, then passes the cause through so callers can
// surface the distinct stale-cart message.
func (o *Orchestrator) invalidateStale(ctx context.Context, s *Session, cause error) error {
	if err := o.carts.Clear(ctx, s.Buyer.ID); err != nil {
		return errors.Wrap(err, "clear stale cart")
	}
	o.sessions.Delete(s.ID)
	return cause
}
