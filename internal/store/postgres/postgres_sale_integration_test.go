package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/service"
	"flowershop/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("FLOWERSHOP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set FLOWERSHOP_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSaleLifecycleAdjustsStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("it-staff-%d", stamp)
	if err := s.CreateUser(ctx, domain.UserAccount{Username: username, Password: "x", Role: domain.RoleStaff}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	flower, err := s.SaveFlower(ctx, domain.Flower{
		Name:            fmt.Sprintf("IT Rose %d", stamp),
		Category:        domain.CategoryRoses,
		Price:           decimal.RequireFromString("50.00"),
		QuantityInStock: 10,
		ReorderLevel:    10,
	})
	if err != nil {
		t.Fatalf("save flower: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = $1`, flower.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	})

	var sale *domain.Sale
	err = s.WithSaleTx(ctx, func(tx store.SaleTx) error {
		locked, err := tx.GetFlowerForUpdate(ctx, flower.ID)
		if err != nil {
			return err
		}
		sale, err = tx.InsertSale(ctx, domain.Sale{
			FlowerID:      locked.ID,
			Quantity:      3,
			UnitPrice:     decimal.RequireFromString("50.00"),
			TotalAmount:   decimal.RequireFromString("150.00"),
			PaymentMethod: domain.PaymentCash,
			SaleDate:      time.Now().UTC(),
			SoldBy:        username,
		})
		if err != nil {
			return err
		}
		return tx.SetFlowerStock(ctx, locked.ID, locked.QuantityInStock-3)
	})
	if err != nil {
		t.Fatalf("sale tx: %v", err)
	}

	got, err := s.GetFlower(ctx, flower.ID)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if got.QuantityInStock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", got.QuantityInStock)
	}

	stored, err := s.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if stored.TotalAmount.StringFixed(2) != "150.00" || stored.FlowerName != flower.Name {
		t.Fatalf("unexpected stored sale: %+v", stored)
	}

	err = s.WithSaleTx(ctx, func(tx store.SaleTx) error {
		locked, err := tx.GetSaleForUpdate(ctx, sale.ID)
		if err != nil {
			return err
		}
		f, err := tx.GetFlowerForUpdate(ctx, locked.FlowerID)
		if err != nil {
			return err
		}
		if err := tx.SetFlowerStock(ctx, f.ID, f.QuantityInStock+locked.Quantity); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, locked.ID)
	})
	if err != nil {
		t.Fatalf("delete tx: %v", err)
	}

	got, err = s.GetFlower(ctx, flower.ID)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if got.QuantityInStock != 10 {
		t.Fatalf("expected stock 10 after delete, got %d", got.QuantityInStock)
	}
	if _, err := s.GetSale(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSaleTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	flower, err := s.SaveFlower(ctx, domain.Flower{
		Name:            fmt.Sprintf("IT Tulip %d", time.Now().UnixNano()),
		Category:        domain.CategoryTulips,
		Price:           decimal.RequireFromString("5.00"),
		QuantityInStock: 4,
		ReorderLevel:    1,
	})
	if err != nil {
		t.Fatalf("save flower: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = $1`, flower.ID)
	})

	boom := errors.New("boom")
	err = s.WithSaleTx(ctx, func(tx store.SaleTx) error {
		if err := tx.SetFlowerStock(ctx, flower.ID, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.GetFlower(ctx, flower.ID)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if got.QuantityInStock != 4 {
		t.Fatalf("expected stock 4 after rollback, got %d", got.QuantityInStock)
	}
}

func TestNegativeStockRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveFlower(ctx, domain.Flower{
		Name:            "IT Broken",
		Category:        domain.CategoryOther,
		Price:           decimal.RequireFromString("1.00"),
		QuantityInStock: -1,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative stock, got %v", err)
	}
}

func TestConcurrentSalesLockFlowerRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	username := fmt.Sprintf("it-race-%d", stamp)
	if err := s.CreateUser(ctx, domain.UserAccount{Username: username, Password: "x", Role: domain.RoleStaff}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	flower, err := s.SaveFlower(ctx, domain.Flower{
		Name:            fmt.Sprintf("IT Peony %d", stamp),
		Category:        domain.CategoryOther,
		Price:           decimal.RequireFromString("9.00"),
		QuantityInStock: 10,
		ReorderLevel:    2,
	})
	if err != nil {
		t.Fatalf("save flower: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = $1`, flower.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	})

	svc := service.New(s, nil, service.Options{})
	actorCtx := service.WithActor(ctx, domain.Actor{Username: username, Role: domain.RoleStaff})

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CreateSale(actorCtx, domain.SaleCreateRequest{
				FlowerID:  flower.ID,
				Quantity:  6,
				UnitPrice: decimal.RequireFromString("9.00"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		default:
			t.Fatalf("unexpected sale error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one sale to succeed, got %d (%v)", succeeded, errs)
	}

	got, err := s.GetFlower(ctx, flower.ID)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if got.QuantityInStock != 4 {
		t.Fatalf("expected stock 4, got %d", got.QuantityInStock)
	}
	var stored int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales WHERE flower_id = $1`, flower.ID).Scan(&stored); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if stored != 1 {
		t.Fatalf("expected one stored sale, got %d", stored)
	}
}

func TestUpdateFlowerInsideSaleTx(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	flower, err := s.SaveFlower(ctx, domain.Flower{
		Name:            fmt.Sprintf("IT Lily %d", time.Now().UnixNano()),
		Category:        domain.CategoryLilies,
		Price:           decimal.RequireFromString("7.00"),
		QuantityInStock: 5,
		ReorderLevel:    1,
	})
	if err != nil {
		t.Fatalf("save flower: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = $1`, flower.ID)
	})

	var saved *domain.Flower
	err = s.WithSaleTx(ctx, func(tx store.SaleTx) error {
		locked, err := tx.GetFlowerForUpdate(ctx, flower.ID)
		if err != nil {
			return err
		}
		locked.QuantityInStock = 40
		locked.Price = decimal.RequireFromString("7.50")
		saved, err = tx.UpdateFlower(ctx, *locked)
		return err
	})
	if err != nil {
		t.Fatalf("update tx: %v", err)
	}
	if saved.QuantityInStock != 40 || saved.Price.StringFixed(2) != "7.50" {
		t.Fatalf("unexpected saved flower: %+v", saved)
	}

	err = s.WithSaleTx(ctx, func(tx store.SaleTx) error {
		locked, err := tx.GetFlowerForUpdate(ctx, flower.ID)
		if err != nil {
			return err
		}
		locked.QuantityInStock = -3
		_, err = tx.UpdateFlower(ctx, *locked)
		return err
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative stock, got %v", err)
	}
	got, err := s.GetFlower(ctx, flower.ID)
	if err != nil {
		t.Fatalf("get flower: %v", err)
	}
	if got.QuantityInStock != 40 {
		t.Fatalf("expected stock 40 after rejected update, got %d", got.QuantityInStock)
	}
}
