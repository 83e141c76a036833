package shipping

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/shippingrate"

	pkgstripe "github.com/hazelbrook/storefront-backend/pkg/stripe"
)

// StripeRatesClient exposes the shipping rate listing used by the shipping service.
type StripeRatesClient interface {
	List(ctx context.Context, limit int64) ([]*stripe.ShippingRate, error)
}

type stripeRatesWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the shipping service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeRatesClient {
	if api == nil {
		return nil
	}
	return &stripeRatesWrapper{}
}

func (w *stripeRatesWrapper) List(ctx context.Context, limit int64) ([]*stripe.ShippingRate, error) {
	params := &stripe.ShippingRateListParams{Active: stripe.Bool(true)}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)

	iter := shippingrate.List(params)
	var rates []*stripe.ShippingRate
	for iter.Next() {
		rates = append(rates, iter.ShippingRate())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}
