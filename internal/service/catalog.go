package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

func (s *Service) ListFlowers(ctx context.Context) (domain.FlowerListResponse, error) {
	all, err := s.repo.ListFlowers(ctx, domain.FlowerFilterAll)
	if err != nil {
		return domain.FlowerListResponse{}, err
	}
	low, err := s.repo.ListFlowers(ctx, domain.FlowerFilterNeedsReorder)
	if err != nil {
		return domain.FlowerListResponse{}, err
	}
	return domain.FlowerListResponse{Flowers: toFlowerViews(all), LowStock: toFlowerViews(low)}, nil
}

// ListSellableFlowers returns the flowers offered on the sale form.
func (s *Service) ListSellableFlowers(ctx context.Context) ([]domain.FlowerView, error) {
	flowers, err := s.repo.ListFlowers(ctx, domain.FlowerFilterInStock)
	if err != nil {
		return nil, err
	}
	return toFlowerViews(flowers), nil
}

func (s *Service) GetFlower(ctx context.Context, id int64) (domain.FlowerView, error) {
	flower, err := s.repo.GetFlower(ctx, id)
	if err != nil {
		return domain.FlowerView{}, err
	}
	return domain.NewFlowerView(*flower), nil
}

func (s *Service) CreateFlower(ctx context.Context, req domain.FlowerRequest) (domain.FlowerView, error) {
	flower, err := flowerFromRequest(req, domain.DefaultReorderLevel)
	if err != nil {
		return domain.FlowerView{}, err
	}

	saved, err := s.repo.SaveFlower(ctx, flower)
	if err != nil {
		return domain.FlowerView{}, err
	}
	s.invalidateReports(ctx)
	log.Printf("[service] flower created id=%d name=%q stock=%d", saved.ID, saved.Name, saved.QuantityInStock)
	return domain.NewFlowerView(*saved), nil
}

// UpdateFlower replaces the editable fields of a flower, stock included.
// Direct stock edits are the restocking path; sales never go through here.
//
// The flower row is locked for the read and the write, so the edit cannot
// interleave with a sale. When req.ExpectedQuantityInStock is set and stock
// has moved since the client read it, store.ErrStaleWrite is returned and
// nothing changes.
func (s *Service) UpdateFlower(ctx context.Context, id int64, req domain.FlowerRequest) (domain.FlowerView, error) {
	var before int
	var saved *domain.Flower
	err := s.withRetry(ctx, "update_flower", func() error {
		return s.repo.WithSaleTx(ctx, func(tx store.SaleTx) error {
			existing, err := tx.GetFlowerForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if req.ExpectedQuantityInStock != nil && *req.ExpectedQuantityInStock != existing.QuantityInStock {
				return fmt.Errorf("%w: %s stock is %d, expected %d",
					store.ErrStaleWrite, existing.Name, existing.QuantityInStock, *req.ExpectedQuantityInStock)
			}

			flower, err := flowerFromRequest(req, existing.ReorderLevel)
			if err != nil {
				return err
			}
			flower.ID = existing.ID

			before = existing.QuantityInStock
			saved, err = tx.UpdateFlower(ctx, flower)
			return err
		})
	})
	if err != nil {
		return domain.FlowerView{}, err
	}
	s.invalidateReports(ctx)
	if saved.QuantityInStock != before {
		log.Printf("[service] flower stock edited id=%d from=%d to=%d", saved.ID, before, saved.QuantityInStock)
	}
	return domain.NewFlowerView(*saved), nil
}

// DeleteFlower removes the flower and every sale recorded against it.
func (s *Service) DeleteFlower(ctx context.Context, id int64) error {
	if err := s.repo.DeleteFlower(ctx, id); err != nil {
		return err
	}
	s.invalidateReports(ctx)
	return nil
}

func flowerFromRequest(req domain.FlowerRequest, defaultReorderLevel int) (domain.Flower, error) {
	name := strings.TrimSpace(req.Name)
	category := domain.FlowerCategory(strings.ToLower(strings.TrimSpace(string(req.Category))))

	if name == "" || len(name) > 100 {
		return domain.Flower{}, invalidf("name is required and must be at most 100 characters")
	}
	if !category.Valid() {
		return domain.Flower{}, invalidf("unknown category %q", req.Category)
	}
	if req.Price.IsNegative() {
		return domain.Flower{}, invalidf("price must not be negative")
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return domain.Flower{}, invalidf("price supports at most 2 decimal places")
	}
	if req.QuantityInStock < 0 {
		return domain.Flower{}, invalidf("quantity_in_stock must not be negative")
	}

	reorderLevel := defaultReorderLevel
	if req.ReorderLevel != nil {
		reorderLevel = *req.ReorderLevel
	}
	if reorderLevel < 0 {
		return domain.Flower{}, invalidf("reorder_level must not be negative")
	}

	return domain.Flower{
		Name:            name,
		Category:        category,
		Description:     strings.TrimSpace(req.Description),
		Price:           req.Price,
		QuantityInStock: req.QuantityInStock,
		ReorderLevel:    reorderLevel,
	}, nil
}

func toFlowerViews(flowers []domain.Flower) []domain.FlowerView {
	views := make([]domain.FlowerView, 0, len(flowers))
	for _, f := range flowers {
		views = append(views, domain.NewFlowerView(f))
	}
	return views
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierRequest) (domain.Supplier, error) {
	supplier, err := supplierFromRequest(req)
	if err != nil {
		return domain.Supplier{}, err
	}

	saved, err := s.repo.SaveSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	log.Printf("[service] supplier created id=%d name=%q", saved.ID, saved.Name)
	return *saved, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, req domain.SupplierRequest) (domain.Supplier, error) {
	supplier, err := supplierFromRequest(req)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier.ID = id

	saved, err := s.repo.SaveSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id int64) error {
	return s.repo.DeleteSupplier(ctx, id)
}

func supplierFromRequest(req domain.SupplierRequest) (domain.Supplier, error) {
	supplier := domain.Supplier{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         normalizeEmail(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
	}

	if supplier.Name == "" || supplier.ContactPerson == "" || supplier.Phone == "" || supplier.Address == "" {
		return domain.Supplier{}, invalidf("name, contact_person, phone and address are required")
	}
	if len(supplier.Name) > 100 || len(supplier.ContactPerson) > 100 || len(supplier.Phone) > 20 {
		return domain.Supplier{}, invalidf("supplier field too long")
	}
	if !validEmail(supplier.Email) {
		return domain.Supplier{}, invalidf("invalid email %q", req.Email)
	}
	return supplier, nil
}
