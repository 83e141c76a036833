package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/hazelbrook/storefront-backend/internal/cart"
	"github.com/hazelbrook/storefront-backend/internal/paymentsync"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	"github.com/hazelbrook/storefront-backend/pkg/metrics"
)

const successGuardScope = "checkout_success"

// Outcomes reported after a redirect return.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeProcessing = "processing"
	OutcomeFailed     = "failed"
)

// Address is the shipping destination collected at checkout.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// ConfirmInput carries everything needed to confirm the session's intent.
type ConfirmInput struct {
	PaymentMethodID string
	Email           string
	Name            string
	Phone           string
	Address         *Address
}

// ConfirmResult reports the intent status after a confirmation attempt.
type ConfirmResult struct {
	IntentID    string
	Status      string
	RedirectURL string
}

// ReturnResult reports the reconciled outcome after a redirect return.
type ReturnResult struct {
	IntentID    string
	Outcome     string
	AmountCents int64
	Email       string
	CartCleared bool
}

type synchronizer interface {
	Snapshot(sessionID string) paymentsync.View
}

type cartAccess interface {
	Clear(ctx context.Context, sessionID string) (cart.Cart, error)
}

type shippingSelection interface {
	Selected(ctx context.Context, sessionID string) (shipping.Option, error)
}

type checkoutKV interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	IntentKey(sessionID string) string
}

// Config tunes the checkout service.
type Config struct {
	ReturnURL       string
	SuccessGuardTTL time.Duration
}

// Service drives confirmation and redirect-return reconciliation.
type Service interface {
	Confirm(ctx context.Context, sessionID string, input ConfirmInput) (*ConfirmResult, error)
	HandleReturn(ctx context.Context, sessionID, intentID, redirectStatus string) (*ReturnResult, error)
}

type service struct {
	stripe   StripeConfirmClient
	syncer   synchronizer
	carts    cartAccess
	shipping shippingSelection
	kv       checkoutKV
	cfg      Config
	met      *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service. Metrics and logger may be nil.
func NewService(
	stripeClient StripeConfirmClient,
	syncer synchronizer,
	carts cartAccess,
	shippingSvc shippingSelection,
	kv checkoutKV,
	cfg Config,
	met *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe confirm client required")
	}
	if syncer == nil {
		return nil, fmt.Errorf("synchronizer required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart access required")
	}
	if shippingSvc == nil {
		return nil, fmt.Errorf("shipping selection required")
	}
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if cfg.ReturnURL == "" {
		return nil, fmt.Errorf("return url required")
	}
	return &service{
		stripe:   stripeClient,
		syncer:   syncer,
		carts:    carts,
		shipping: shippingSvc,
		kv:       kv,
		cfg:      cfg,
		met:      met,
		logg:     logg,
	}, nil
}

// Confirm validates the session is payable and confirms the intent with
// the provided payment method.
func (s *service) Confirm(ctx context.Context, sessionID string, input ConfirmInput) (*ConfirmResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	view := s.syncer.Snapshot(sessionID)
	if view.State != paymentsync.StateReady || view.ClientSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not ready to confirm")
	}

	option, err := s.shipping.Selected(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateConfirmInput(input, option); err != nil {
		return nil, err
	}

	params := s.buildConfirmParams(input)
	intent, err := s.stripe.Confirm(ctx, view.IntentID, params)
	if err != nil {
		return nil, s.confirmError(ctx, err)
	}

	result := &ConfirmResult{IntentID: intent.ID, Status: string(intent.Status)}
	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresAction:
		if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
			result.RedirectURL = intent.NextAction.RedirectToURL.URL
		}
	case stripe.PaymentIntentStatusSucceeded:
		s.finalizeSuccess(ctx, sessionID, intent)
	}
	s.met.IncConfirm(string(intent.Status))
	return result, nil
}

// HandleReturn reconciles the redirect callback from the payment provider.
// Successful intents clear the cart exactly once, no matter how many times
// the callback fires.
func (s *service) HandleReturn(ctx context.Context, sessionID, intentID, redirectStatus string) (*ReturnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(intentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	if strings.EqualFold(redirectStatus, OutcomeFailed) {
		s.met.IncConfirm(OutcomeFailed)
		return &ReturnResult{IntentID: intentID, Outcome: OutcomeFailed}, nil
	}

	intent, err := s.stripe.Get(ctx, intentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}

	result := &ReturnResult{
		IntentID:    intent.ID,
		AmountCents: intent.Amount,
		Email:       intent.ReceiptEmail,
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Outcome = OutcomeSucceeded
		result.CartCleared = s.finalizeSuccess(ctx, sessionID, intent)
		s.met.IncConfirm(OutcomeSucceeded)
	case stripe.PaymentIntentStatusProcessing:
		result.Outcome = OutcomeProcessing
	default:
		result.Outcome = OutcomeFailed
		s.met.IncConfirm(OutcomeFailed)
	}
	return result, nil
}

// finalizeSuccess clears session state behind a one-shot guard keyed by
// intent id. Returns true only for the invocation that won the guard.
func (s *service) finalizeSuccess(ctx context.Context, sessionID string, intent *stripe.PaymentIntent) bool {
	guardKey := s.kv.IdempotencyKey(successGuardScope, intent.ID)
	won, err := s.kv.SetNX(ctx, guardKey, "1", s.cfg.SuccessGuardTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "success guard unavailable, skipping cart clear")
		}
		return false
	}
	if !won {
		return false
	}

	// drop the stored intent id first so the sync the cart clear schedules
	// cannot find and cancel the intent that just succeeded
	if err := s.kv.Del(ctx, s.kv.IntentKey(sessionID)); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "clearing stored intent id failed")
	}
	if _, err := s.carts.Clear(ctx, sessionID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "clearing cart after successful payment failed", err)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithIntentID(ctx, intent.ID), "checkout completed")
	}
	return true
}

func (s *service) buildConfirmParams(input ConfirmInput) *stripe.PaymentIntentConfirmParams {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(input.PaymentMethodID),
		ReturnURL:     stripe.String(s.cfg.ReturnURL),
		ReceiptEmail:  stripe.String(input.Email),
	}

	details := &stripe.ShippingDetailsParams{}
	if input.Name != "" {
		details.Name = stripe.String(input.Name)
	}
	if input.Phone != "" {
		details.Phone = stripe.String(input.Phone)
	}
	if input.Address != nil {
		details.Address = &stripe.AddressParams{
			Line1:      stripe.String(input.Address.Line1),
			City:       stripe.String(input.Address.City),
			State:      stripe.String(input.Address.State),
			PostalCode: stripe.String(input.Address.PostalCode),
			Country:    stripe.String(input.Address.Country),
		}
		if input.Address.Line2 != "" {
			details.Address.Line2 = stripe.String(input.Address.Line2)
		}
	}
	if details.Name != nil || details.Address != nil {
		params.Shipping = details
	}
	return params
}

func (s *service) confirmError(ctx context.Context, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		s.met.IncConfirm("declined")
		if s.logg != nil {
			s.logg.Warn(ctx, "payment method declined")
		}
		return pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, err, "payment was declined")
	}
	s.met.IncConfirm(OutcomeFailed)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment intent")
}

func validateConfirmInput(input ConfirmInput, option shipping.Option) error {
	if strings.TrimSpace(input.PaymentMethodID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	if option.ID == shipping.PickupOptionID {
		if strings.TrimSpace(input.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name is required for pickup orders")
		}
		return nil
	}

	addr := input.Address
	if addr == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if strings.TrimSpace(addr.Line1) == "" ||
		strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" ||
		strings.TrimSpace(addr.Country) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}
	return nil
}
