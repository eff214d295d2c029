package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultReorderLevel = 10

type FlowerCategory string

const (
	CategoryRoses    FlowerCategory = "roses"
	CategoryTulips   FlowerCategory = "tulips"
	CategoryLilies   FlowerCategory = "lilies"
	CategoryOrchids  FlowerCategory = "orchids"
	CategorySeasonal FlowerCategory = "seasonal"
	CategoryOther    FlowerCategory = "other"
)

func (c FlowerCategory) Valid() bool {
	switch c {
	case CategoryRoses, CategoryTulips, CategoryLilies, CategoryOrchids, CategorySeasonal, CategoryOther:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	default:
		return false
	}
}

type Flower struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Category        FlowerCategory  `json:"category"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantity_in_stock"`
	ReorderLevel    int             `json:"reorder_level"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NeedsReorder reports whether stock is at or below the reorder level.
func (f Flower) NeedsReorder() bool {
	return f.QuantityInStock <= f.ReorderLevel
}

// FlowerView is the API shape of a flower, carrying the derived reorder flag.
type FlowerView struct {
	Flower
	NeedsReorder bool `json:"needs_reorder"`
}

func NewFlowerView(f Flower) FlowerView {
	return FlowerView{Flower: f, NeedsReorder: f.NeedsReorder()}
}

type FlowerFilter string

const (
	FlowerFilterAll          FlowerFilter = ""
	FlowerFilterInStock      FlowerFilter = "in_stock"
	FlowerFilterNeedsReorder FlowerFilter = "needs_reorder"
)

type FlowerRequest struct {
	Name            string          `json:"name"`
	Category        FlowerCategory  `json:"category"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	QuantityInStock int             `json:"quantity_in_stock"`
	ReorderLevel    *int            `json:"reorder_level,omitempty"`

	// ExpectedQuantityInStock, when set on an update, is the stock the client
	// last read. The update is refused if stock has moved since.
	ExpectedQuantityInStock *int `json:"expected_quantity_in_stock,omitempty"`
}

type FlowerListResponse struct {
	Flowers  []FlowerView `json:"flowers"`
	LowStock []FlowerView `json:"low_stock"`
}

type Supplier struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

type SupplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

// Customer is kept separate from Sale: sales only carry free-text customer
// name and email.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Sale is immutable once recorded. TotalAmount is fixed at creation.
type Sale struct {
	ID            int64           `json:"id"`
	FlowerID      int64           `json:"flower_id"`
	FlowerName    string          `json:"flower_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	SaleDate      time.Time       `json:"sale_date"`
	SoldBy        string          `json:"sold_by"`
}

type SaleCreateRequest struct {
	FlowerID      int64           `json:"flower_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

type SaleListStats struct {
	Total         decimal.Decimal `json:"total"`
	TotalQuantity int             `json:"total_quantity"`
	Average       decimal.Decimal `json:"average"`
}

type SaleListResponse struct {
	Sales []Sale        `json:"sales"`
	Stats SaleListStats `json:"stats"`
}

type DayTotal struct {
	Date        string          `json:"date"`
	DayName     string          `json:"day_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Count       int             `json:"sales_count"`
}

type FlowerSales struct {
	FlowerID          int64           `json:"flower_id"`
	FlowerName        string          `json:"flower_name"`
	TotalQuantitySold int             `json:"total_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

type SalesReport struct {
	Date           string                `json:"date"`
	Timezone       string                `json:"timezone"`
	TodayTotal     decimal.Decimal       `json:"today_total"`
	TodaySales     []Sale                `json:"today_sales"`
	WeekTotal      decimal.Decimal       `json:"week_total"`
	WeekSalesCount int                   `json:"week_sales_count"`
	LastSevenDays  []DayTotal            `json:"last_7_days"`
	TopFlowers     []FlowerSales         `json:"top_flowers"`
	PaymentMethods map[PaymentMethod]int `json:"payment_methods"`
	TotalCustomers int                   `json:"total_customers"`
	AverageSale    decimal.Decimal       `json:"average_sale"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffPasswordResetRequest struct {
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
