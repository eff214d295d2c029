package store

import (
	"context"
	"errors"
	"time"

	"flowershop/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict marks a unit of work aborted by a concurrent update. Callers may retry.
	ErrConflict  = errors.New("concurrent update conflict")
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleWrite rejects an edit based on a value that has since changed.
	ErrStaleWrite = errors.New("stale write")
)

type SaleOrder int

const (
	SaleOrderNewestFirst SaleOrder = iota
	SaleOrderOldestFirst
)

// SaleQuery selects sales with From <= sale_date < To. Zero bounds are open.
type SaleQuery struct {
	From  time.Time
	To    time.Time
	Order SaleOrder
}

type CatalogStore interface {
	GetFlower(ctx context.Context, id int64) (*domain.Flower, error)
	// SaveFlower inserts when ID is zero and updates otherwise.
	SaveFlower(ctx context.Context, flower domain.Flower) (*domain.Flower, error)
	DeleteFlower(ctx context.Context, id int64) error
	ListFlowers(ctx context.Context, filter domain.FlowerFilter) ([]domain.Flower, error)

	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id int64) error
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CountCustomers(ctx context.Context) (int, error)
}

type SaleStore interface {
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	QuerySales(ctx context.Context, query SaleQuery) ([]domain.Sale, error)
	// WithSaleTx runs fn as one atomic unit of work. Every change made through
	// tx is committed when fn returns nil and discarded otherwise.
	WithSaleTx(ctx context.Context, fn func(tx SaleTx) error) error
}

// SaleTx is the only path that inserts or deletes sales or edits a flower's
// stock, so every stock change happens under the flower's row lock.
type SaleTx interface {
	GetFlowerForUpdate(ctx context.Context, id int64) (*domain.Flower, error)
	SetFlowerStock(ctx context.Context, flowerID int64, qty int) error
	// UpdateFlower rewrites the editable fields of a flower locked by
	// GetFlowerForUpdate, stock included.
	UpdateFlower(ctx context.Context, flower domain.Flower) (*domain.Flower, error)
	GetSaleForUpdate(ctx context.Context, id int64) (*domain.Sale, error)
	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	CatalogStore
	CustomerStore
	SaleStore
	UserStore
}
