package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

func TestInsufficientStockError_IsAndMessage(t *testing.T) {
	err := &domain.InsufficientStockError{ProductID: 1, Name: "캣타워", Available: 2}

	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatal("expected errors.Is match for ErrInsufficientStock")
	}
	if !domain.IsInsufficientStock(fmt.Errorf("place order: %w", err)) {
		t.Fatal("expected match through wrapping")
	}
	if !strings.Contains(err.Error(), "2") {
		t.Fatalf("message must carry available count, got %q", err.Error())
	}

	var typed *domain.InsufficientStockError
	if !errors.As(fmt.Errorf("wrap: %w", err), &typed) {
		t.Fatal("expected errors.As to recover typed error")
	}
	if typed.Available != 2 {
		t.Fatalf("expected available 2, got %d", typed.Available)
	}
}

func TestProductNotFoundError_Is(t *testing.T) {
	err := &domain.ProductNotFoundError{ProductID: 99}
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatal("expected errors.Is match for ErrProductNotFound")
	}
	if !strings.Contains(err.Error(), "99") {
		t.Fatalf("message must carry product id, got %q", err.Error())
	}
}

func TestPricingError_Unwrap(t *testing.T) {
	cause := errors.New("discount service unavailable")
	err := &domain.PricingError{Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("pricing error must unwrap to its cause")
	}
}
