package shipping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
)

type fakeRates struct {
	rates []*stripe.ShippingRate
	err   error
}

func (f *fakeRates) List(ctx context.Context, limit int64) ([]*stripe.ShippingRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

type fakeOptionKV struct {
	values map[string]string
}

func newFakeOptionKV() *fakeOptionKV {
	return &fakeOptionKV{values: map[string]string{}}
}

func (f *fakeOptionKV) Get(ctx context.Context, key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return val, nil
}

func (f *fakeOptionKV) Set(ctx context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeOptionKV) ShippingOptionKey(sessionID string) string {
	return "sf:session:" + sessionID + ":shipping_option"
}

func newTestService(rates StripeRatesClient, kv optionKV) Service {
	return &service{rates: rates, kv: kv, rateLimit: 5, ttl: time.Hour}
}

func stripeRate(id, label string, amount int64) *stripe.ShippingRate {
	return &stripe.ShippingRate{
		ID:          id,
		DisplayName: label,
		FixedAmount: &stripe.ShippingRateFixedAmount{Amount: amount},
	}
}

func TestListOptionsPutsPickupFirst(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRates{rates: []*stripe.ShippingRate{
		stripeRate("shr_1", "Standard", 500),
		stripeRate("shr_2", "Express", 1500),
	}}, newFakeOptionKV())

	options := svc.ListOptions(context.Background())
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(options))
	}
	if options[0].ID != PickupOptionID || options[0].AmountCents != 0 {
		t.Fatalf("expected free pickup first, got %+v", options[0])
	}
	if options[1].ID != "shr_1" || options[1].AmountCents != 500 {
		t.Fatalf("unexpected rate option %+v", options[1])
	}
}

func TestListOptionsDegradesToPickupOnError(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRates{err: errors.New("stripe down")}, newFakeOptionKV())

	options := svc.ListOptions(context.Background())
	if len(options) != 1 || options[0].ID != PickupOptionID {
		t.Fatalf("expected pickup only, got %+v", options)
	}
}

func TestSelectOptionPersistsChoice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newFakeOptionKV()
	svc := newTestService(&fakeRates{rates: []*stripe.ShippingRate{
		stripeRate("shr_1", "Standard", 500),
	}}, kv)

	chosen, err := svc.SelectOption(ctx, "s1", "shr_1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if chosen.AmountCents != 500 {
		t.Fatalf("unexpected option %+v", chosen)
	}

	stored, err := svc.Selected(ctx, "s1")
	if err != nil {
		t.Fatalf("selected failed: %v", err)
	}
	if stored.ID != "shr_1" || stored.Label != "Standard" {
		t.Fatalf("unexpected stored option %+v", stored)
	}
}

func TestSelectOptionRejectsUnknownID(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRates{}, newFakeOptionKV())
	_, err := svc.SelectOption(context.Background(), "s1", "shr_ghost")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectedDefaultsToPickup(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeRates{}, newFakeOptionKV())
	option, err := svc.Selected(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("selected failed: %v", err)
	}
	if option.ID != PickupOptionID {
		t.Fatalf("expected pickup default, got %+v", option)
	}
}

func TestSelectedDiscardsCorruptedPayload(t *testing.T) {
	t.Parallel()

	kv := newFakeOptionKV()
	kv.values[kv.ShippingOptionKey("s1")] = "{broken"
	svc := newTestService(&fakeRates{}, kv)

	option, err := svc.Selected(context.Background(), "s1")
	if err != nil {
		t.Fatalf("selected failed: %v", err)
	}
	if option.ID != PickupOptionID {
		t.Fatalf("expected pickup fallback, got %+v", option)
	}
}
