package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

// CreateSale records a sale and takes its quantity out of the flower's stock
// in one unit of work. The flower row stays locked from the stock check to
// the commit, so two concurrent sales can never both spend the same units.
//
// Unlike a plain subtract, a sale larger than the stock on hand is rejected
// with store.ErrInsufficientStock and leaves stock untouched.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return domain.Sale{}, ErrUnauthenticated
	}

	method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod))))
	if method == "" {
		method = domain.PaymentCash
	}
	customerName := strings.TrimSpace(req.CustomerName)
	customerEmail := normalizeEmail(req.CustomerEmail)

	switch {
	case req.FlowerID < 1:
		return domain.Sale{}, invalidf("flower_id is required")
	case req.Quantity < 1:
		return domain.Sale{}, invalidf("quantity must be a positive integer")
	case req.UnitPrice.IsNegative():
		return domain.Sale{}, invalidf("unit_price must not be negative")
	case !req.UnitPrice.Equal(req.UnitPrice.Round(2)):
		return domain.Sale{}, invalidf("unit_price supports at most 2 decimal places")
	case !method.Valid():
		return domain.Sale{}, invalidf("unsupported payment method %q", req.PaymentMethod)
	case len(customerName) > 100:
		return domain.Sale{}, invalidf("customer_name must be at most 100 characters")
	case customerEmail != "" && !validEmail(customerEmail):
		return domain.Sale{}, invalidf("invalid customer_email %q", req.CustomerEmail)
	}

	total := req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	var created *domain.Sale
	err := s.withRetry(ctx, "create_sale", func() error {
		return s.repo.WithSaleTx(ctx, func(tx store.SaleTx) error {
			flower, err := tx.GetFlowerForUpdate(ctx, req.FlowerID)
			if err != nil {
				return err
			}
			if req.Quantity > flower.QuantityInStock {
				return fmt.Errorf("%w: %s has %d in stock, %d requested",
					store.ErrInsufficientStock, flower.Name, flower.QuantityInStock, req.Quantity)
			}

			sale, err := tx.InsertSale(ctx, domain.Sale{
				FlowerID:      flower.ID,
				Quantity:      req.Quantity,
				UnitPrice:     req.UnitPrice,
				TotalAmount:   total,
				CustomerName:  customerName,
				CustomerEmail: customerEmail,
				PaymentMethod: method,
				SaleDate:      s.now().UTC(),
				SoldBy:        actor.Username,
			})
			if err != nil {
				return err
			}
			if err := tx.SetFlowerStock(ctx, flower.ID, flower.QuantityInStock-req.Quantity); err != nil {
				return err
			}

			created = sale
			return nil
		})
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx)
	log.Printf("[service] sale recorded id=%d flower=%d qty=%d total=%s by=%s",
		created.ID, created.FlowerID, created.Quantity, created.TotalAmount.StringFixed(2), created.SoldBy)
	return *created, nil
}

// DeleteSale removes a sale and puts its quantity back into stock atomically.
func (s *Service) DeleteSale(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrNotFound
	}

	var restored domain.Sale
	err := s.withRetry(ctx, "delete_sale", func() error {
		return s.repo.WithSaleTx(ctx, func(tx store.SaleTx) error {
			sale, err := tx.GetSaleForUpdate(ctx, id)
			if err != nil {
				return err
			}
			flower, err := tx.GetFlowerForUpdate(ctx, sale.FlowerID)
			if err != nil {
				return err
			}
			if err := tx.SetFlowerStock(ctx, flower.ID, flower.QuantityInStock+sale.Quantity); err != nil {
				return err
			}
			if err := tx.DeleteSale(ctx, sale.ID); err != nil {
				return err
			}

			restored = *sale
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.invalidateReports(ctx)
	log.Printf("[service] sale deleted id=%d flower=%d restocked=%d", restored.ID, restored.FlowerID, restored.Quantity)
	return nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns every sale, newest first, with list statistics.
func (s *Service) ListSales(ctx context.Context) (domain.SaleListResponse, error) {
	sales, err := s.repo.QuerySales(ctx, store.SaleQuery{Order: store.SaleOrderNewestFirst})
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales, Stats: AggregateListStats(sales)}, nil
}
