package postgres

import (
	"context"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Email) == "" {
		return nil, store.ErrInvalidInput
	}

	var err error
	if customer.ID == 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO customers (name, email, phone, address, created_at)
			VALUES ($1,$2,$3,$4,now())
			RETURNING id, created_at
		`, customer.Name, customer.Email, customer.Phone, customer.Address).Scan(&customer.ID, &customer.CreatedAt)
	} else {
		err = s.db.QueryRowContext(ctx, `
			UPDATE customers
			SET name = $2, email = $3, phone = $4, address = $5
			WHERE id = $1
			RETURNING created_at
		`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address).Scan(&customer.CreatedAt)
	}
	if err != nil {
		return nil, translateError(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address, created_at
		FROM customers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
