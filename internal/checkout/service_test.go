package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/hazelbrook/storefront-backend/internal/cart"
	"github.com/hazelbrook/storefront-backend/internal/paymentsync"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
)

type fakeStripeConfirm struct {
	confirmCalls  int
	getCalls      int
	confirmErr    error
	confirmStatus stripe.PaymentIntentStatus
	getStatus     stripe.PaymentIntentStatus
	lastParams    *stripe.PaymentIntentConfirmParams
	redirectURL   string
}

func (f *fakeStripeConfirm) Confirm(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	f.confirmCalls++
	f.lastParams = params
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	intent := &stripe.PaymentIntent{ID: id, Status: f.confirmStatus}
	if f.redirectURL != "" {
		intent.NextAction = &stripe.PaymentIntentNextAction{
			RedirectToURL: &stripe.PaymentIntentNextActionRedirectToURL{URL: f.redirectURL},
		}
	}
	return intent, nil
}

func (f *fakeStripeConfirm) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.getCalls++
	return &stripe.PaymentIntent{
		ID:           id,
		Status:       f.getStatus,
		Amount:       2500,
		ReceiptEmail: "buyer@example.com",
	}, nil
}

type fakeSync struct {
	view paymentsync.View
}

func (f *fakeSync) Snapshot(sessionID string) paymentsync.View { return f.view }

type fakeCarts struct {
	clearCalls int
	onClear    func()
}

func (f *fakeCarts) Clear(ctx context.Context, sessionID string) (cart.Cart, error) {
	f.clearCalls++
	if f.onClear != nil {
		f.onClear()
	}
	return cart.Cart{}, nil
}

type fakeShippingSelection struct {
	option shipping.Option
}

func (f *fakeShippingSelection) Selected(ctx context.Context, sessionID string) (shipping.Option, error) {
	return f.option, nil
}

type fakeCheckoutKV struct {
	values map[string]string
}

func newFakeCheckoutKV() *fakeCheckoutKV {
	return &fakeCheckoutKV{values: map[string]string{}}
}

func (f *fakeCheckoutKV) SetNX(ctx context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeCheckoutKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeCheckoutKV) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeCheckoutKV) IntentKey(sessionID string) string {
	return "sf:session:" + sessionID + ":payment_intent_id"
}

type testDeps struct {
	stripe   *fakeStripeConfirm
	syncer   *fakeSync
	carts    *fakeCarts
	shipping *fakeShippingSelection
	kv       *fakeCheckoutKV
}

func newTestDeps() *testDeps {
	return &testDeps{
		stripe: &fakeStripeConfirm{confirmStatus: stripe.PaymentIntentStatusSucceeded, getStatus: stripe.PaymentIntentStatusSucceeded},
		syncer: &fakeSync{view: paymentsync.View{
			State:        paymentsync.StateReady,
			IntentID:     "pi_1",
			ClientSecret: "pi_1_secret",
			AmountCents:  2500,
		}},
		carts:    &fakeCarts{},
		shipping: &fakeShippingSelection{option: shipping.PickupOption()},
		kv:       newFakeCheckoutKV(),
	}
}

func newTestService(t *testing.T, deps *testDeps) Service {
	t.Helper()
	svc, err := NewService(deps.stripe, deps.syncer, deps.carts, deps.shipping, deps.kv, Config{
		ReturnURL:       "https://shop.example.com/checkout/success",
		SuccessGuardTTL: time.Hour,
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func pickupInput() ConfirmInput {
	return ConfirmInput{
		PaymentMethodID: "pm_1",
		Email:           "buyer@example.com",
		Name:            "Jordan Buyer",
	}
}

func TestConfirmRejectedWhenNotReady(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	deps.syncer.view = paymentsync.View{State: paymentsync.StateSyncing}
	svc := newTestService(t, deps)

	_, err := svc.Confirm(context.Background(), "s1", pickupInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if deps.stripe.confirmCalls != 0 {
		t.Fatal("confirm must not reach stripe when not ready")
	}
}

func TestConfirmValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]func(deps *testDeps) ConfirmInput{
		"missing payment method": func(deps *testDeps) ConfirmInput {
			input := pickupInput()
			input.PaymentMethodID = ""
			return input
		},
		"missing email": func(deps *testDeps) ConfirmInput {
			input := pickupInput()
			input.Email = ""
			return input
		},
		"pickup without name": func(deps *testDeps) ConfirmInput {
			input := pickupInput()
			input.Name = ""
			return input
		},
		"delivery without address": func(deps *testDeps) ConfirmInput {
			deps.shipping.option = shipping.Option{ID: "shr_1", Label: "Standard", AmountCents: 500}
			return pickupInput()
		},
		"delivery with incomplete address": func(deps *testDeps) ConfirmInput {
			deps.shipping.option = shipping.Option{ID: "shr_1", Label: "Standard", AmountCents: 500}
			input := pickupInput()
			input.Address = &Address{Line1: "1 Main St"}
			return input
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			deps := newTestDeps()
			svc := newTestService(t, deps)
			input := build(deps)

			_, err := svc.Confirm(context.Background(), "s1", input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestConfirmSucceededClearsCart(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	svc := newTestService(t, deps)

	result, err := svc.Confirm(context.Background(), "s1", pickupInput())
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if result.Status != string(stripe.PaymentIntentStatusSucceeded) {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if deps.carts.clearCalls != 1 {
		t.Fatalf("expected cart cleared once, got %d", deps.carts.clearCalls)
	}

	params := deps.stripe.lastParams
	if params == nil || params.PaymentMethod == nil || *params.PaymentMethod != "pm_1" {
		t.Fatalf("expected payment method on params, got %+v", params)
	}
	if params.ReturnURL == nil || *params.ReturnURL == "" {
		t.Fatal("expected return url on params")
	}
	if params.Shipping == nil || params.Shipping.Name == nil {
		t.Fatal("expected recipient name for pickup order")
	}
}

func TestConfirmDropsIntentKeyBeforeCartClear(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	deps.kv.values[deps.kv.IntentKey("s1")] = "pi_1"
	intentPresentAtClear := false
	deps.carts.onClear = func() {
		_, intentPresentAtClear = deps.kv.values[deps.kv.IntentKey("s1")]
	}
	svc := newTestService(t, deps)

	if _, err := svc.Confirm(context.Background(), "s1", pickupInput()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if deps.carts.clearCalls != 1 {
		t.Fatalf("expected one cart clear, got %d", deps.carts.clearCalls)
	}
	if intentPresentAtClear {
		t.Fatal("stored intent id must be removed before the cart clear runs")
	}
}

func TestConfirmRequiresActionReturnsRedirect(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	deps.stripe.confirmStatus = stripe.PaymentIntentStatusRequiresAction
	deps.stripe.redirectURL = "https://hooks.stripe.com/redirect/pi_1"
	svc := newTestService(t, deps)

	result, err := svc.Confirm(context.Background(), "s1", pickupInput())
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if result.RedirectURL != "https://hooks.stripe.com/redirect/pi_1" {
		t.Fatalf("expected redirect url, got %q", result.RedirectURL)
	}
	if deps.carts.clearCalls != 0 {
		t.Fatal("cart must not be cleared before the redirect completes")
	}
}

func TestConfirmDeclinedCardMapsToPaymentDeclined(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	deps.stripe.confirmErr = &stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeCardDeclined,
		Msg:  "Your card was declined.",
	}
	svc := newTestService(t, deps)

	_, err := svc.Confirm(context.Background(), "s1", pickupInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentDeclined {
		t.Fatalf("expected payment declined, got %v", err)
	}
	if deps.carts.clearCalls != 0 {
		t.Fatal("declined payment must not clear the cart")
	}
}

func TestHandleReturnFailedRedirectSkipsLookup(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	svc := newTestService(t, deps)

	result, err := svc.HandleReturn(context.Background(), "s1", "pi_1", "failed")
	if err != nil {
		t.Fatalf("handle return failed: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %q", result.Outcome)
	}
	if deps.stripe.getCalls != 0 {
		t.Fatal("failed redirect must not hit stripe")
	}
	if deps.carts.clearCalls != 0 {
		t.Fatal("failed redirect must not clear the cart")
	}
}

func TestHandleReturnSucceededIsIdempotent(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	svc := newTestService(t, deps)

	ctx := context.Background()
	first, err := svc.HandleReturn(ctx, "s1", "pi_1", "succeeded")
	if err != nil {
		t.Fatalf("first return failed: %v", err)
	}
	if first.Outcome != OutcomeSucceeded || !first.CartCleared {
		t.Fatalf("expected success with cart cleared, got %+v", first)
	}
	if first.AmountCents != 2500 || first.Email != "buyer@example.com" {
		t.Fatalf("expected intent details, got %+v", first)
	}

	second, err := svc.HandleReturn(ctx, "s1", "pi_1", "succeeded")
	if err != nil {
		t.Fatalf("second return failed: %v", err)
	}
	if second.Outcome != OutcomeSucceeded {
		t.Fatalf("expected success outcome on replay, got %q", second.Outcome)
	}
	if second.CartCleared {
		t.Fatal("replayed callback must not clear the cart again")
	}
	if deps.carts.clearCalls != 1 {
		t.Fatalf("expected exactly one cart clear, got %d", deps.carts.clearCalls)
	}
}

func TestHandleReturnProcessing(t *testing.T) {
	t.Parallel()

	deps := newTestDeps()
	deps.stripe.getStatus = stripe.PaymentIntentStatusProcessing
	svc := newTestService(t, deps)

	result, err := svc.HandleReturn(context.Background(), "s1", "pi_1", "succeeded")
	if err != nil {
		t.Fatalf("handle return failed: %v", err)
	}
	if result.Outcome != OutcomeProcessing {
		t.Fatalf("expected processing outcome, got %q", result.Outcome)
	}
	if deps.carts.clearCalls != 0 {
		t.Fatal("processing payment must not clear the cart")
	}
}
