package controllers

import (
	"context"
	"net/http"

	"github.com/hazelbrook/storefront-backend/api/middleware"
	"github.com/hazelbrook/storefront-backend/api/responses"
	"github.com/hazelbrook/storefront-backend/api/validators"
	cartsvc "github.com/hazelbrook/storefront-backend/internal/cart"
	checkoutsvc "github.com/hazelbrook/storefront-backend/internal/checkout"
	"github.com/hazelbrook/storefront-backend/internal/paymentsync"
	"github.com/hazelbrook/storefront-backend/internal/shipping"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
)

// IntentSynchronizer is the synchronizer surface the checkout endpoints use.
type IntentSynchronizer interface {
	Snapshot(sessionID string) paymentsync.View
	SyncNow(ctx context.Context, sessionID string, contents cartsvc.Cart) paymentsync.View
}

type syncViewResponse struct {
	State        string `json:"state"`
	IntentID     string `json:"intent_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	AmountCents  int64  `json:"amount_cents"`
	Error        string `json:"error,omitempty"`
}

func newSyncViewResponse(view paymentsync.View) syncViewResponse {
	return syncViewResponse{
		State:        string(view.State),
		IntentID:     view.IntentID,
		ClientSecret: view.ClientSecret,
		AmountCents:  view.AmountCents,
		Error:        view.ErrMessage,
	}
}

type checkoutStateResponse struct {
	Cart           cartResponse           `json:"cart"`
	Payment        syncViewResponse       `json:"payment"`
	ShippingOption shippingOptionResponse `json:"shipping_option"`
}

type addressRequest struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

type confirmRequest struct {
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`
	Email           string          `json:"email" validate:"required,email"`
	Name            string          `json:"name,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Address         *addressRequest `json:"address,omitempty"`
}

type confirmResponse struct {
	IntentID    string `json:"intent_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type returnResponse struct {
	IntentID    string `json:"intent_id"`
	Outcome     string `json:"outcome"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Email       string `json:"email,omitempty"`
}

// CheckoutState reports the cart, payment readiness and shipping choice in one shot.
func CheckoutState(syncer IntentSynchronizer, carts cartsvc.Service, shippingSvc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		contents, err := carts.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		option, err := shippingSvc.Selected(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutStateResponse{
			Cart:           newCartResponse(contents),
			Payment:        newSyncViewResponse(syncer.Snapshot(sessionID)),
			ShippingOption: newShippingOptionResponse(option),
		})
	}
}

// CheckoutRetry forces an immediate synchronization, bypassing the debounce.
func CheckoutRetry(syncer IntentSynchronizer, carts cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		contents, err := carts.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSyncViewResponse(syncer.SyncNow(r.Context(), sessionID, contents)))
	}
}

// CheckoutIntent exposes the current intent credentials for the payment form.
func CheckoutIntent(syncer IntentSynchronizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := syncer.Snapshot(middleware.SessionIDFromContext(r.Context()))
		if view.State != paymentsync.StateReady {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent is not ready"))
			return
		}
		responses.WriteSuccess(w, newSyncViewResponse(view))
	}
}

// CheckoutConfirm confirms the session's intent with the submitted payment details.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.ConfirmInput{
			PaymentMethodID: payload.PaymentMethodID,
			Email:           payload.Email,
			Name:            payload.Name,
			Phone:           payload.Phone,
		}
		if payload.Address != nil {
			input.Address = &checkoutsvc.Address{
				Line1:      payload.Address.Line1,
				Line2:      payload.Address.Line2,
				City:       payload.Address.City,
				State:      payload.Address.State,
				PostalCode: payload.Address.PostalCode,
				Country:    payload.Address.Country,
			}
		}

		result, err := svc.Confirm(r.Context(), middleware.SessionIDFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{
			IntentID:    result.IntentID,
			Status:      result.Status,
			RedirectURL: result.RedirectURL,
		})
	}
}

// CheckoutReturn reconciles the provider redirect callback.
func CheckoutReturn(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID := r.URL.Query().Get("payment_intent")
		redirectStatus := r.URL.Query().Get("redirect_status")

		result, err := svc.HandleReturn(r.Context(), middleware.SessionIDFromContext(r.Context()), intentID, redirectStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, returnResponse{
			IntentID:    result.IntentID,
			Outcome:     result.Outcome,
			AmountCents: result.AmountCents,
			Email:       result.Email,
		})
	}
}
