package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hazelbrook/storefront-backend/pkg/db/models"
	pkgerrors "github.com/hazelbrook/storefront-backend/pkg/errors"
)

type stubLister struct {
	products []models.Product
	findErr  error
}

func (s *stubLister) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	return s.products, nil
}

func (s *stubLister) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if len(s.products) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &s.products[0], nil
}

func TestGetProductNotFound(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubLister{findErr: gorm.ErrRecordNotFound})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	_, err = svc.GetProduct(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestGetProductRequiresID(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubLister{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	_, err = svc.GetProduct(context.Background(), uuid.Nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
