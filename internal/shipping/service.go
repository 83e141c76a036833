package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
	pkgredis "github.com/hazelbrook/storefront-backend/pkg/redis"
)

// PickupOptionID identifies the built-in local pickup option.
const PickupOptionID = "pickup"

// Option is a shipping choice offered at checkout.
type Option struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	AmountCents   int64  `json:"amount_cents"`
	EstimatedDays string `json:"estimated_days,omitempty"`
}

// PickupOption is always offered and carries no cost.
func PickupOption() Option {
	return Option{ID: PickupOptionID, Label: "Local pickup", AmountCents: 0}
}

type optionKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ShippingOptionKey(sessionID string) string
}

// Service exposes shipping option listing and per-session selection.
type Service interface {
	ListOptions(ctx context.Context) []Option
	SelectOption(ctx context.Context, sessionID, optionID string) (Option, error)
	Selected(ctx context.Context, sessionID string) (Option, error)
}

type service struct {
	rates     StripeRatesClient
	kv        optionKV
	rateLimit int64
	ttl       time.Duration
	logg      *logger.Logger
}

// NewService builds a shipping service backed by Stripe shipping rates.
func NewService(rates StripeRatesClient, kv *pkgredis.Client, rateLimit int, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if rates == nil {
		return nil, fmt.Errorf("stripe rates client required")
	}
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &service{
		rates:     rates,
		kv:        kv,
		rateLimit: int64(rateLimit),
		ttl:       ttl,
		logg:      logg,
	}, nil
}

// ListOptions returns pickup first, followed by active Stripe rates. When
// the rate listing fails the storefront degrades to pickup only.
func (s *service) ListOptions(ctx context.Context) []Option {
	options := []Option{PickupOption()}

	rates, err := s.rates.List(ctx, s.rateLimit)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "listing shipping rates failed, offering pickup only")
		}
		return options
	}

	for _, rate := range rates {
		if rate == nil || rate.FixedAmount == nil {
			continue
		}
		options = append(options, Option{
			ID:            rate.ID,
			Label:         rate.DisplayName,
			AmountCents:   rate.FixedAmount.Amount,
			EstimatedDays: estimateText(rate.DeliveryEstimate),
		})
	}
	return options
}

func estimateText(est *stripe.ShippingRateDeliveryEstimate) string {
	if est == nil {
		return ""
	}
	switch {
	case est.Minimum != nil && est.Maximum != nil:
		return fmt.Sprintf("%d-%d days", est.Minimum.Value, est.Maximum.Value)
	case est.Maximum != nil:
		return fmt.Sprintf("up to %d days", est.Maximum.Value)
	case est.Minimum != nil:
		return fmt.Sprintf("%d+ days", est.Minimum.Value)
	default:
		return ""
	}
}

// SelectOption validates the option against the current offering and
// persists the choice for the session.
func (s *service) SelectOption(ctx context.Context, sessionID, optionID string) (Option, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Option{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if strings.TrimSpace(optionID) == "" {
		return Option{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping option id is required")
	}

	var selected *Option
	for _, option := range s.ListOptions(ctx) {
		if option.ID == optionID {
			chosen := option
			selected = &chosen
			break
		}
	}
	if selected == nil {
		return Option{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping option")
	}

	payload, err := json.Marshal(selected)
	if err != nil {
		return Option{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipping option")
	}
	if err := s.kv.Set(ctx, s.kv.ShippingOptionKey(sessionID), string(payload), s.ttl); err != nil {
		return Option{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save shipping option")
	}
	return *selected, nil
}

// Selected returns the stored choice, defaulting to pickup.
func (s *service) Selected(ctx context.Context, sessionID string) (Option, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Option{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	raw, err := s.kv.Get(ctx, s.kv.ShippingOptionKey(sessionID))
	if err != nil {
		if pkgredis.IsNil(err) {
			return PickupOption(), nil
		}
		return Option{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping option")
	}

	var option Option
	if err := json.Unmarshal([]byte(raw), &option); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "discarding unreadable shipping option")
		}
		return PickupOption(), nil
	}
	return option, nil
}
