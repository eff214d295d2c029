package postgres

import (
	"context"
	"database/sql"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

const flowerColumns = `id, name, category, description, price, quantity_in_stock, reorder_level, created_at, updated_at`

const updateFlowerSQL = `
	UPDATE flowers
	SET name = $2, category = $3, description = $4, price = $5, quantity_in_stock = $6, reorder_level = $7, updated_at = now()
	WHERE id = $1
	RETURNING ` + flowerColumns

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlower(row rowScanner) (domain.Flower, error) {
	var f domain.Flower
	err := row.Scan(&f.ID, &f.Name, &f.Category, &f.Description, &f.Price, &f.QuantityInStock, &f.ReorderLevel, &f.CreatedAt, &f.UpdatedAt)
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, err
}

func (s *Store) GetFlower(ctx context.Context, id int64) (*domain.Flower, error) {
	flower, err := scanFlower(s.db.QueryRowContext(ctx, `SELECT `+flowerColumns+` FROM flowers WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return &flower, nil
}

func (s *Store) SaveFlower(ctx context.Context, flower domain.Flower) (*domain.Flower, error) {
	if strings.TrimSpace(flower.Name) == "" || !flower.Category.Valid() || flower.Price.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	var row *sql.Row
	if flower.ID == 0 {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO flowers (name, category, description, price, quantity_in_stock, reorder_level, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,now(),now())
			RETURNING `+flowerColumns,
			flower.Name, flower.Category, flower.Description, flower.Price, flower.QuantityInStock, flower.ReorderLevel)
	} else {
		row = s.db.QueryRowContext(ctx, updateFlowerSQL,
			flower.ID, flower.Name, flower.Category, flower.Description, flower.Price, flower.QuantityInStock, flower.ReorderLevel)
	}

	saved, err := scanFlower(row)
	if err != nil {
		return nil, translateError(err)
	}
	return &saved, nil
}

func (s *Store) DeleteFlower(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) ListFlowers(ctx context.Context, filter domain.FlowerFilter) ([]domain.Flower, error) {
	where := ""
	switch filter {
	case domain.FlowerFilterInStock:
		where = "WHERE quantity_in_stock > 0"
	case domain.FlowerFilterNeedsReorder:
		where = "WHERE quantity_in_stock <= reorder_level"
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+flowerColumns+` FROM flowers `+where+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flowers := make([]domain.Flower, 0, 64)
	for rows.Next() {
		f, err := scanFlower(rows)
		if err != nil {
			return nil, err
		}
		flowers = append(flowers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flowers, nil
}

func (s *Store) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_person, email, phone, address
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Email, &sup.Phone, &sup.Address)
	if err != nil {
		return nil, translateError(err)
	}
	return &sup, nil
}

func (s *Store) SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	if supplier.ID == 0 {
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO suppliers (name, contact_person, email, phone, address)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, supplier.Name, supplier.ContactPerson, supplier.Email, supplier.Phone, supplier.Address).Scan(&supplier.ID)
		if err != nil {
			return nil, translateError(err)
		}
		saved := supplier
		return &saved, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, contact_person = $3, email = $4, phone = $5, address = $6
		WHERE id = $1
	`, supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Email, supplier.Phone, supplier.Address)
	if err != nil {
		return nil, translateError(err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	saved := supplier
	return &saved, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_person, email, phone, address
		FROM suppliers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Email, &sup.Phone, &sup.Address); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}
