package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tribetrade/storefront/internal/domain/buyer"
	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/delivery"
)

// State tracks a checkout session through the two-phase flow.
type State string

const (
	// StateOpen means no order has been registered yet; delivery can change.
	StateOpen State = "OPEN"
	// StatePendingPayment means the order is registered backend-side and the
	// session is waiting for a payment result. Pay may be retried; the order
	// is never re-registered.
	StatePendingPayment State = "PENDING_PAYMENT"
	// StatePaid means the gateway confirmed the charge and the cart was cleared.
	StatePaid State = "PAID"
)

// Session is the ephemeral checkout context: the line snapshot, the delivery
// selection, and the payment reference. It lives in memory only and is
// discarded after success or expiry; abandoning it leaves any registered
// order pending backend-side.
type Session struct {
	ID         string
	Buyer      buyer.Profile
	Token      string
	Lines      []cart.Line
	SingleItem bool
	SameCampus bool
	Mode       delivery.Mode
	Details    delivery.Details

	// PaymentRef is generated once when the session is created and reused
	// verbatim on every prepare and pay retry, so backend retries cannot
	// double-register or double-charge.
	PaymentRef string

	State       State
	OrderID     int64
	Quote       Quote
	PaymentLink string
	CreatedAt   time.Time

	// busy serializes submit/complete attempts from the same session. It is
	// a guard against double-clicks, not a lock; concurrent callers are
	// rejected rather than queued.
	busy atomic.Bool

	// mu guards the mutable fields against concurrent View readers. Writers
	// are already serialized by busy; mu only makes their stores visible to
	// reads happening during an in-flight submit.
	mu sync.Mutex
}

// View is a point-in-time copy of a session's observable state. All reads of
// a live session outside the orchestrator go through View, so a request
// viewing the session never races an in-flight submit.
type View struct {
	ID          string
	Buyer       buyer.Profile
	Lines       []cart.Line
	SingleItem  bool
	SameCampus  bool
	Mode        delivery.Mode
	Details     delivery.Details
	PaymentRef  string
	State       State
	OrderID     int64
	Quote       Quote
	PaymentLink string
	CreatedAt   time.Time
}

// View snapshots the session under its lock.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:          s.ID,
		Buyer:       s.Buyer,
		Lines:       s.Lines,
		SingleItem:  s.SingleItem,
		SameCampus:  s.SameCampus,
		Mode:        s.Mode,
		Details:     s.Details,
		PaymentRef:  s.PaymentRef,
		State:       s.State,
		OrderID:     s.OrderID,
		Quote:       s.Quote,
		PaymentLink: s.PaymentLink,
		CreatedAt:   s.CreatedAt,
	}
}

// tryAcquire marks the session as having an in-flight attempt.
func (s *Session) tryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// release clears the in-flight marker.
func (s *Session) release() {
	s.busy.Store(false)
}

// newPaymentRef builds the idempotency reference: a timestamp plus a random
// suffix, in the format the backend has always received.
func newPaymentRef(now time.Time, suffix int) string {
	return fmt.Sprintf("TT-%d-%d", now.UnixMilli(), suffix)
}

// SessionStore keeps live checkout sessions in memory with a TTL. Sessions
// are per-process by design: the checkout context is ephemeral and never
// persisted.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a store whose sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Put registers a session.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns a live session by id.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if st.now().Sub(s.CreatedAt) > st.ttl {
		return nil, false
	}
	return s, true
}

// Delete removes a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Sweep drops expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	cutoff := st.now().Add(-st.ttl)
	for id, s := range st.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions at the given interval until ctx is cancelled.
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}
