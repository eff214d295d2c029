package memory

import (
	"cmp"
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	flowers         map[int64]domain.Flower
	suppliers       map[int64]domain.Supplier
	customers       map[int64]domain.Customer
	sales           map[int64]domain.Sale
	usersByUsername map[string]domain.UserAccount

	nextFlowerID   int64
	nextSupplierID int64
	nextCustomerID int64
	nextSaleID     int64
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store with no users.
func New() *Store {
	return &Store{
		flowers:         make(map[int64]domain.Flower),
		suppliers:       make(map[int64]domain.Supplier),
		customers:       make(map[int64]domain.Customer),
		sales:           make(map[int64]domain.Sale),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; when
// unset, dev defaults are used with a warning. The postgres repository never
// uses these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo users and a starter catalog.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, f := range []domain.Flower{
		{Name: "Red Rose", Category: domain.CategoryRoses, Price: decimal.RequireFromString("50.00"), QuantityInStock: 120, ReorderLevel: 20},
		{Name: "White Tulip", Category: domain.CategoryTulips, Price: decimal.RequireFromString("35.00"), QuantityInStock: 80, ReorderLevel: 15},
		{Name: "Stargazer Lily", Category: domain.CategoryLilies, Price: decimal.RequireFromString("65.00"), QuantityInStock: 40, ReorderLevel: 10},
		{Name: "Phalaenopsis Orchid", Category: domain.CategoryOrchids, Price: decimal.RequireFromString("450.00"), QuantityInStock: 12, ReorderLevel: 5},
		{Name: "Sunflower", Category: domain.CategorySeasonal, Price: decimal.RequireFromString("40.00"), QuantityInStock: 8, ReorderLevel: 10},
		{Name: "Baby's Breath", Category: domain.CategoryOther, Price: decimal.RequireFromString("25.00"), QuantityInStock: 60, ReorderLevel: 10},
	} {
		s.nextFlowerID++
		f.ID = s.nextFlowerID
		f.CreatedAt = now
		f.UpdatedAt = now
		s.flowers[f.ID] = f
	}
	return s
}

func (s *Store) GetFlower(_ context.Context, id int64) (*domain.Flower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flower, ok := s.flowers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &flower, nil
}

func (s *Store) SaveFlower(_ context.Context, flower domain.Flower) (*domain.Flower, error) {
	if strings.TrimSpace(flower.Name) == "" || !flower.Category.Valid() || flower.Price.IsNegative() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if flower.ID == 0 {
		s.nextFlowerID++
		flower.ID = s.nextFlowerID
		flower.CreatedAt = now
	} else {
		existing, ok := s.flowers[flower.ID]
		if !ok {
			return nil, store.ErrNotFound
		}
		flower.CreatedAt = existing.CreatedAt
	}
	flower.UpdatedAt = now
	s.flowers[flower.ID] = flower
	saved := flower
	return &saved, nil
}

// DeleteFlower removes the flower together with its sales.
func (s *Store) DeleteFlower(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flowers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.flowers, id)
	for saleID, sale := range s.sales {
		if sale.FlowerID == id {
			delete(s.sales, saleID)
		}
	}
	return nil
}

func (s *Store) ListFlowers(_ context.Context, filter domain.FlowerFilter) ([]domain.Flower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flowers := make([]domain.Flower, 0, len(s.flowers))
	for _, f := range s.flowers {
		switch filter {
		case domain.FlowerFilterInStock:
			if f.QuantityInStock <= 0 {
				continue
			}
		case domain.FlowerFilterNeedsReorder:
			if !f.NeedsReorder() {
				continue
			}
		}
		flowers = append(flowers, f)
	}
	slices.SortFunc(flowers, func(a, b domain.Flower) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return flowers, nil
}

func (s *Store) GetSupplier(_ context.Context, id int64) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) SaveSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == 0 {
		s.nextSupplierID++
		supplier.ID = s.nextSupplierID
	} else if _, ok := s.suppliers[supplier.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.suppliers[supplier.ID] = supplier
	saved := supplier
	return &saved, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return suppliers, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) SaveCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || strings.TrimSpace(customer.Email) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customers {
		if existing.ID != customer.ID && strings.EqualFold(existing.Email, customer.Email) {
			return nil, store.ErrDuplicate
		}
	}

	if customer.ID == 0 {
		s.nextCustomerID++
		customer.ID = s.nextCustomerID
		customer.CreatedAt = time.Now().UTC()
	} else {
		existing, ok := s.customers[customer.ID]
		if !ok {
			return nil, store.ErrNotFound
		}
		customer.CreatedAt = existing.CreatedAt
	}
	s.customers[customer.ID] = customer
	saved := customer
	return &saved, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) CountCustomers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.FlowerName = s.flowers[sale.FlowerID].Name
	return &sale, nil
}

func (s *Store) QuerySales(_ context.Context, query store.SaleQuery) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !query.From.IsZero() && sale.SaleDate.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !sale.SaleDate.Before(query.To) {
			continue
		}
		sale.FlowerName = s.flowers[sale.FlowerID].Name
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		c := a.SaleDate.Compare(b.SaleDate)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if query.Order == store.SaleOrderNewestFirst {
			return -c
		}
		return c
	})
	return sales, nil
}

// WithSaleTx holds the store's write lock for the whole unit of work, which
// serializes sale transactions the way a row lock would. Changes are applied
// in place and reverted from an undo journal if fn fails.
func (s *Store) WithSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &saleTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type saleTx struct {
	s    *Store
	undo []func()
}

func (t *saleTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *saleTx) GetFlowerForUpdate(_ context.Context, id int64) (*domain.Flower, error) {
	flower, ok := t.s.flowers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &flower, nil
}

func (t *saleTx) SetFlowerStock(_ context.Context, flowerID int64, qty int) error {
	previous, ok := t.s.flowers[flowerID]
	if !ok {
		return store.ErrNotFound
	}
	updated := previous
	updated.QuantityInStock = qty
	updated.UpdatedAt = time.Now().UTC()
	t.s.flowers[flowerID] = updated
	t.undo = append(t.undo, func() { t.s.flowers[flowerID] = previous })
	return nil
}

func (t *saleTx) UpdateFlower(_ context.Context, flower domain.Flower) (*domain.Flower, error) {
	if strings.TrimSpace(flower.Name) == "" || !flower.Category.Valid() || flower.Price.IsNegative() || flower.QuantityInStock < 0 {
		return nil, store.ErrInvalidInput
	}
	previous, ok := t.s.flowers[flower.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	flower.CreatedAt = previous.CreatedAt
	flower.UpdatedAt = time.Now().UTC()
	t.s.flowers[flower.ID] = flower
	t.undo = append(t.undo, func() { t.s.flowers[flower.ID] = previous })

	saved := flower
	return &saved, nil
}

func (t *saleTx) GetSaleForUpdate(_ context.Context, id int64) (*domain.Sale, error) {
	sale, ok := t.s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.FlowerName = t.s.flowers[sale.FlowerID].Name
	return &sale, nil
}

func (t *saleTx) InsertSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	flower, ok := t.s.flowers[sale.FlowerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.s.nextSaleID++
	sale.ID = t.s.nextSaleID
	sale.FlowerName = ""
	t.s.sales[sale.ID] = sale
	id := sale.ID
	t.undo = append(t.undo, func() { delete(t.s.sales, id) })

	sale.FlowerName = flower.Name
	return &sale, nil
}

func (t *saleTx) DeleteSale(_ context.Context, id int64) error {
	previous, ok := t.s.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(t.s.sales, id)
	t.undo = append(t.undo, func() { t.s.sales[id] = previous })
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
