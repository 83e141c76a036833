package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hazelbrook/storefront-backend/api/middleware"
	"github.com/hazelbrook/storefront-backend/api/responses"
	"github.com/hazelbrook/storefront-backend/api/validators"
	cartsvc "github.com/hazelbrook/storefront-backend/internal/cart"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	Image     *string         `json:"image,omitempty"`
	Variant   *string         `json:"variant,omitempty"`
	Color     *string         `json:"color,omitempty"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required"`
}

type cartLineResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice string  `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  string  `json:"subtotal"`
	Image     *string `json:"image,omitempty"`
	Variant   *string `json:"variant,omitempty"`
	Color     *string `json:"color,omitempty"`
}

type cartResponse struct {
	Lines       []cartLineResponse `json:"lines"`
	Count       int                `json:"count"`
	Total       string             `json:"total"`
	AmountCents int64              `json:"amount_cents"`
	Notice      string             `json:"notice,omitempty"`
}

func newCartResponse(contents cartsvc.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(contents.Lines))
	for _, line := range contents.Lines {
		lines = append(lines, cartLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal().StringFixed(2),
			Image:     line.Image,
			Variant:   line.Variant,
			Color:     line.Color,
		})
	}
	return cartResponse{
		Lines:       lines,
		Count:       contents.Count(),
		Total:       contents.Total().StringFixed(2),
		AmountCents: contents.AmountCents(),
	}
}

// CartFetch returns the session's cart.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contents, err := svc.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(contents))
	}
}

// CartAdd inserts a line, replacing the quantity when the product already exists.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contents, err := svc.Add(r.Context(), middleware.SessionIDFromContext(r.Context()), cartsvc.Line{
			ProductID: payload.ProductID,
			Name:      payload.Name,
			UnitPrice: payload.UnitPrice,
			Quantity:  payload.Quantity,
			Image:     payload.Image,
			Variant:   payload.Variant,
			Color:     payload.Color,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := newCartResponse(contents)
		out.Notice = payload.Name + " added to cart"
		responses.WriteSuccess(w, out)
	}
}

// CartUpdateQuantity sets the quantity for an existing line.
func CartUpdateQuantity(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		var payload cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contents, err := svc.UpdateQuantity(r.Context(), middleware.SessionIDFromContext(r.Context()), productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := newCartResponse(contents)
		out.Notice = "quantity updated"
		responses.WriteSuccess(w, out)
	}
}

// CartRemove drops a line from the cart.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		if productID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		contents, err := svc.Remove(r.Context(), middleware.SessionIDFromContext(r.Context()), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := newCartResponse(contents)
		out.Notice = "item removed from cart"
		responses.WriteSuccess(w, out)
	}
}

// CartClear empties the cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contents, err := svc.Clear(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := newCartResponse(contents)
		out.Notice = "cart cleared"
		responses.WriteSuccess(w, out)
	}
}
