package paymentsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/hazelbrook/storefront-backend/internal/cart"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	"github.com/hazelbrook/storefront-backend/pkg/metrics"
)

// State describes where a session sits in the intent lifecycle.
type State string

const (
	StateEmpty   State = "empty"
	StateSyncing State = "syncing"
	StateReady   State = "ready"
	StateError   State = "error"
)

const (
	outcomeReady = "ready"
	outcomeError = "error"
	outcomeEmpty = "empty"
)

// View is a read-only snapshot of a session's sync status.
type View struct {
	State        State
	IntentID     string
	ClientSecret string
	AmountCents  int64
	ErrMessage   string
}

type intentKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IntentKey(sessionID string) string
}

// Config tunes the synchronizer behavior.
type Config struct {
	Debounce    time.Duration
	SessionTTL  time.Duration
	Currency    string
	SyncTimeout time.Duration
}

type sessionState struct {
	cart    cart.Cart
	timer   *time.Timer
	syncing bool
	pending bool
	view    View
}

// Synchronizer keeps each session's payment intent aligned with its cart.
// Cart changes are debounced, and at most one sync per session runs at a
// time; changes arriving mid-sync trigger a follow-up pass.
type Synchronizer struct {
	stripe StripeIntentClient
	kv     intentKV
	cfg    Config
	met    *metrics.CheckoutMetrics
	logg   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewSynchronizer builds the synchronizer. Metrics and logger may be nil.
func NewSynchronizer(stripeClient StripeIntentClient, kv intentKV, cfg Config, met *metrics.CheckoutMetrics, logg *logger.Logger) (*Synchronizer, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe intent client required")
	}
	if kv == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if cfg.Currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 30 * time.Second
	}
	return &Synchronizer{
		stripe:   stripeClient,
		kv:       kv,
		cfg:      cfg,
		met:      met,
		logg:     logg,
		sessions: map[string]*sessionState{},
	}, nil
}

// CartChanged records the new cart contents and schedules a debounced sync.
func (s *Synchronizer) CartChanged(ctx context.Context, sessionID string, contents cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(sessionID)
	st.cart = contents
	st.view.State = StateSyncing
	st.view.ErrMessage = ""

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.startSync(sessionID)
	})
}

// SyncNow synchronizes the session immediately, bypassing the debounce.
// If a sync is already running the request is coalesced into it and the
// in-flight view is returned.
func (s *Synchronizer) SyncNow(ctx context.Context, sessionID string, contents cart.Cart) View {
	s.mu.Lock()
	st := s.ensureLocked(sessionID)
	st.cart = contents
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	if st.syncing {
		st.pending = true
		st.view.State = StateSyncing
		st.view.ErrMessage = ""
		view := st.view
		s.mu.Unlock()
		return view
	}
	st.syncing = true
	st.view.State = StateSyncing
	st.view.ErrMessage = ""
	s.mu.Unlock()

	s.runLoop(ctx, sessionID, st)

	s.mu.Lock()
	view := st.view
	s.mu.Unlock()
	return view
}

// Snapshot returns the last known view for the session.
func (s *Synchronizer) Snapshot(sessionID string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.sessions[sessionID]; ok {
		return st.view
	}
	return View{State: StateEmpty}
}

func (s *Synchronizer) ensureLocked(sessionID string) *sessionState {
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{view: View{State: StateEmpty}}
		s.sessions[sessionID] = st
	}
	return st
}

func (s *Synchronizer) startSync(sessionID string) {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if st.syncing {
		st.pending = true
		s.mu.Unlock()
		return
	}
	st.syncing = true
	st.timer = nil
	s.mu.Unlock()

	s.runLoop(context.Background(), sessionID, st)
}

// runLoop performs syncs until no further change arrived mid-flight.
// Callers must have claimed the syncing flag.
func (s *Synchronizer) runLoop(ctx context.Context, sessionID string, st *sessionState) {
	for {
		s.mu.Lock()
		snapshot := st.cart
		st.pending = false
		s.mu.Unlock()

		view := s.syncOnce(ctx, sessionID, snapshot)

		s.mu.Lock()
		if st.pending {
			st.view.State = StateSyncing
			st.view.ErrMessage = ""
			s.mu.Unlock()
			continue
		}
		if view.State == StateError {
			// keep the last usable credentials so a retry can reuse them
			view.IntentID = st.view.IntentID
			view.ClientSecret = st.view.ClientSecret
			view.AmountCents = st.view.AmountCents
		}
		st.view = view
		st.syncing = false
		if view.State == StateEmpty && st.timer == nil && st.cart.IsEmpty() {
			// nothing durable left for the session, release the entry
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return
	}
}

func (s *Synchronizer) syncOnce(parent context.Context, sessionID string, snapshot cart.Cart) View {
	ctx, cancel := context.WithTimeout(parent, s.cfg.SyncTimeout)
	defer cancel()
	if s.logg != nil {
		ctx = s.logg.WithSessionID(ctx, sessionID)
	}

	started := time.Now()

	intentID := s.storedIntentID(ctx, sessionID)

	if snapshot.IsEmpty() {
		if intentID != "" {
			if _, err := s.stripe.Cancel(ctx, intentID, &stripe.PaymentIntentCancelParams{}); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "canceling orphaned payment intent failed")
			}
			if err := s.kv.Del(ctx, s.kv.IntentKey(sessionID)); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "clearing stored intent id failed")
			}
		}
		s.met.ObserveSync(outcomeEmpty, time.Since(started))
		return View{State: StateEmpty}
	}

	amount := snapshot.AmountCents()
	params := s.buildParams(snapshot, amount)

	var intent *stripe.PaymentIntent
	var err error
	if intentID != "" {
		intent, err = s.stripe.Update(ctx, intentID, params)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithIntentID(ctx, intentID), "intent update failed, creating replacement")
			}
			s.met.IncFallback()
			intent, err = s.stripe.Create(ctx, s.buildParams(snapshot, amount))
		}
	} else {
		intent, err = s.stripe.Create(ctx, params)
	}

	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "payment intent sync failed", err)
		}
		s.met.ObserveSync(outcomeError, time.Since(started))
		return View{State: StateError, ErrMessage: "payment intent sync failed"}
	}

	if err := s.kv.Set(ctx, s.kv.IntentKey(sessionID), intent.ID, s.cfg.SessionTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "storing intent id failed")
	}

	s.met.ObserveSync(outcomeReady, time.Since(started))
	return View{
		State:        StateReady,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  amount,
	}
}

func (s *Synchronizer) storedIntentID(ctx context.Context, sessionID string) string {
	id, err := s.kv.Get(ctx, s.kv.IntentKey(sessionID))
	if err != nil {
		return ""
	}
	return id
}

func (s *Synchronizer) buildParams(snapshot cart.Cart, amount int64) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.cfg.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("cart", encodeCartMetadata(snapshot))
	return params
}

type metadataLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func encodeCartMetadata(snapshot cart.Cart) string {
	lines := make([]metadataLine, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, metadataLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice.String(),
			Quantity:  line.Quantity,
		})
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return "[]"
	}
	return string(payload)
}
