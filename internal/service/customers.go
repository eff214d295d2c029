package service

import (
	"context"
	"log"
	"strings"

	"flowershop/backend/internal/domain"
)

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// CreateCustomer registers a customer. Emails are unique across customers;
// a clash surfaces as store.ErrDuplicate.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	customer, err := customerFromRequest(req)
	if err != nil {
		return domain.Customer{}, err
	}

	saved, err := s.repo.SaveCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.invalidateReports(ctx)
	log.Printf("[service] customer created id=%d", saved.ID)
	return *saved, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (domain.Customer, error) {
	customer, err := customerFromRequest(req)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.ID = id

	saved, err := s.repo.SaveCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.invalidateReports(ctx)
	return nil
}

func customerFromRequest(req domain.CustomerRequest) (domain.Customer, error) {
	customer := domain.Customer{
		Name:    strings.TrimSpace(req.Name),
		Email:   normalizeEmail(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}
	if customer.Name == "" || len(customer.Name) > 100 {
		return domain.Customer{}, invalidf("name is required and must be at most 100 characters")
	}
	if !validEmail(customer.Email) {
		return domain.Customer{}, invalidf("invalid email %q", req.Email)
	}
	if len(customer.Phone) > 20 {
		return domain.Customer{}, invalidf("phone must be at most 20 characters")
	}
	return customer, nil
}
