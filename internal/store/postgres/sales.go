package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

const saleSelect = `
	SELECT s.id, s.flower_id, f.name, s.quantity, s.unit_price, s.total_amount,
		s.customer_name, s.customer_email, s.payment_method, s.sale_date, s.sold_by
	FROM sales s
	JOIN flowers f ON f.id = s.flower_id`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.FlowerID, &sale.FlowerName, &sale.Quantity, &sale.UnitPrice, &sale.TotalAmount,
		&sale.CustomerName, &sale.CustomerEmail, &sale.PaymentMethod, &sale.SaleDate, &sale.SoldBy)
	sale.SaleDate = sale.SaleDate.UTC()
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, saleSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return &sale, nil
}

func (s *Store) QuerySales(ctx context.Context, query store.SaleQuery) ([]domain.Sale, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if !query.From.IsZero() {
		args = append(args, query.From)
		conditions = append(conditions, fmt.Sprintf("s.sale_date >= $%d", len(args)))
	}
	if !query.To.IsZero() {
		args = append(args, query.To)
		conditions = append(conditions, fmt.Sprintf("s.sale_date < $%d", len(args)))
	}

	stmt := saleSelect
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}
	if query.Order == store.SaleOrderOldestFirst {
		stmt += " ORDER BY s.sale_date ASC, s.id ASC"
	} else {
		stmt += " ORDER BY s.sale_date DESC, s.id DESC"
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

// WithSaleTx runs fn inside a read-committed transaction. Row locks taken by
// GetFlowerForUpdate serialize concurrent sales of the same flower; a lock
// wait beyond lock_timeout or a detected deadlock surfaces as ErrConflict.
func (s *Store) WithSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if _, err := pgTx.ExecContext(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
		return translateError(err)
	}

	if err := fn(&saleTx{tx: pgTx}); err != nil {
		return translateError(err)
	}
	return translateError(pgTx.Commit())
}

type saleTx struct {
	tx *sql.Tx
}

func (t *saleTx) GetFlowerForUpdate(ctx context.Context, id int64) (*domain.Flower, error) {
	flower, err := scanFlower(t.tx.QueryRowContext(ctx, `SELECT `+flowerColumns+` FROM flowers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return &flower, nil
}

func (t *saleTx) SetFlowerStock(ctx context.Context, flowerID int64, qty int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE flowers
		SET quantity_in_stock = $2, updated_at = now()
		WHERE id = $1
	`, flowerID, qty)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (t *saleTx) UpdateFlower(ctx context.Context, flower domain.Flower) (*domain.Flower, error) {
	saved, err := scanFlower(t.tx.QueryRowContext(ctx, updateFlowerSQL,
		flower.ID, flower.Name, flower.Category, flower.Description, flower.Price, flower.QuantityInStock, flower.ReorderLevel))
	if err != nil {
		return nil, translateError(err)
	}
	return &saved, nil
}

func (t *saleTx) GetSaleForUpdate(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(t.tx.QueryRowContext(ctx, saleSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return &sale, nil
}

func (t *saleTx) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sales (
			flower_id, quantity, unit_price, total_amount, customer_name,
			customer_email, payment_method, sale_date, sold_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, sale.FlowerID, sale.Quantity, sale.UnitPrice, sale.TotalAmount, sale.CustomerName,
		sale.CustomerEmail, sale.PaymentMethod, sale.SaleDate, sale.SoldBy).Scan(&sale.ID)
	if err != nil {
		return nil, translateError(err)
	}

	if err := t.tx.QueryRowContext(ctx, `SELECT name FROM flowers WHERE id = $1`, sale.FlowerID).Scan(&sale.FlowerName); err != nil {
		return nil, translateError(err)
	}
	return &sale, nil
}

func (t *saleTx) DeleteSale(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}
