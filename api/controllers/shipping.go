package controllers

import (
	"net/http"

	"github.com/hazelbrook/storefront-backend/api/middleware"
	"github.com/hazelbrook/storefront-backend/api/responses"
	"github.com/hazelbrook/storefront-backend/api/validators"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
)

type shippingOptionRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

type shippingOptionResponse struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	AmountCents   int64  `json:"amount_cents"`
	EstimatedDays string `json:"estimated_days,omitempty"`
}

func newShippingOptionResponse(option shipping.Option) shippingOptionResponse {
	return shippingOptionResponse{
		ID:            option.ID,
		Label:         option.Label,
		AmountCents:   option.AmountCents,
		EstimatedDays: option.EstimatedDays,
	}
}

// ShippingRates lists the options offered at checkout, pickup included.
func ShippingRates(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		options := svc.ListOptions(r.Context())
		out := make([]shippingOptionResponse, 0, len(options))
		for _, option := range options {
			out = append(out, newShippingOptionResponse(option))
		}
		responses.WriteSuccess(w, out)
	}
}

// ShippingOptionSelect stores the session's shipping choice.
func ShippingOptionSelect(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload shippingOptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		option, err := svc.SelectOption(r.Context(), middleware.SessionIDFromContext(r.Context()), payload.OptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShippingOptionResponse(option))
	}
}
