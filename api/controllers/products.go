package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hazelbrook/storefront-backend/api/responses"
	"github.com/hazelbrook/storefront-backend/internal/catalog"
	"github.com/hazelbrook/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
	"github.com/hazelbrook/storefront-backend/pkg/logger"
)

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Price       string   `json:"price"`
	PriceCents  int64    `json:"price_cents"`
	Image       *string  `json:"image,omitempty"`
	Category    string   `json:"category"`
	IsFeatured  bool     `json:"is_featured"`
	IsNew       bool     `json:"is_new"`
	InStock     bool     `json:"in_stock"`
	Variants    []string `json:"variants"`
	Colors      []string `json:"colors"`
	Details     []string `json:"details"`
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:          product.ID.String(),
		Name:        product.Name,
		Description: product.Description,
		Price:       decimal.NewFromInt(product.PriceCents).Div(decimal.NewFromInt(100)).StringFixed(2),
		PriceCents:  product.PriceCents,
		Image:       product.Image,
		Category:    product.Category,
		IsFeatured:  product.IsFeatured,
		IsNew:       product.IsNew,
		InStock:     product.InStock,
		Variants:    product.Variants,
		Colors:      product.Colors,
		Details:     product.Details,
	}
}

// ProductList serves the catalog with optional category/featured filters.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := catalog.ListFilter{Category: r.URL.Query().Get("category")}
		if raw := r.URL.Query().Get("featured"); raw != "" {
			featured, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "featured must be a boolean"))
				return
			}
			filter.Featured = &featured
		}

		products, err := svc.ListProducts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(products))
		for _, product := range products {
			out = append(out, newProductResponse(product))
		}
		responses.WriteSuccess(w, out)
	}
}

// ProductDetail serves a single catalog entry.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id must be a uuid"))
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}
