package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/service"
	"flowershop/backend/internal/store/memory"
)

// newTestAPI builds a full API over an in-memory store with one admin and one
// staff account, so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	for _, u := range []domain.UserAccount{
		{Username: "admin", Password: mustHashPassword(t, "admin123"), Role: domain.RoleAdmin},
		{Username: "staff", Password: mustHashPassword(t, "staff123"), Role: domain.RoleStaff},
	} {
		if err := repo.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	svc := service.New(repo, nil, service.Options{})
	auth := NewAuthManager("test-secret-key-test-secret-key-0", time.Hour, repo)
	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()
	res := doJSON(t, api, "", http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: username, Password: password})
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", username, res.Code, res.Body.String())
	}
	var body domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return body.AccessToken
}

func doJSON(t *testing.T, api *API, token, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func createFlower(t *testing.T, api *API, token string, stock int) domain.FlowerView {
	t.Helper()
	reorder := 10
	res := doJSON(t, api, token, http.MethodPost, "/api/v1/flowers", domain.FlowerRequest{
		Name:            "Rose",
		Category:        domain.CategoryRoses,
		Price:           decimal.RequireFromString("50.00"),
		QuantityInStock: stock,
		ReorderLevel:    &reorder,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create flower: expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	var body struct {
		Flower domain.FlowerView `json:"flower"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode flower: %v", err)
	}
	return body.Flower
}

func getFlower(t *testing.T, api *API, token string, id int64) domain.FlowerView {
	t.Helper()
	res := doJSON(t, api, token, http.MethodGet, "/api/v1/flowers/"+strconv.FormatInt(id, 10), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("get flower: expected 200, got %d (%s)", res.Code, res.Body.String())
	}
	var body struct {
		Flower domain.FlowerView `json:"flower"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode flower: %v", err)
	}
	return body.Flower
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, "", http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, "", http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "admin", Password: "wrong"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/v1/flowers", "/api/v1/sales", "/api/v1/reports/sales", "/api/v1/users/staff"} {
		res := doJSON(t, api, "", http.MethodGet, path, nil)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, res.Code)
		}
	}
}

func TestStaffCannotManageCatalog(t *testing.T) {
	api := newTestAPI(t)
	staff := login(t, api, "staff", "staff123")

	res := doJSON(t, api, staff, http.MethodPost, "/api/v1/flowers", domain.FlowerRequest{
		Name: "Rose", Category: domain.CategoryRoses, Price: decimal.NewFromInt(1),
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff flower create, got %d", res.Code)
	}

	res = doJSON(t, api, staff, http.MethodGet, "/api/v1/suppliers", nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff supplier list, got %d", res.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	staff := login(t, api, "staff", "staff123")
	rose := createFlower(t, api, admin, 10)

	res := doJSON(t, api, staff, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		FlowerID:      rose.ID,
		Quantity:      3,
		UnitPrice:     decimal.RequireFromString("50.00"),
		PaymentMethod: domain.PaymentCard,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if !created.Sale.TotalAmount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("expected total 150, got %s", created.Sale.TotalAmount)
	}
	if created.Sale.SoldBy != "staff" {
		t.Fatalf("expected sold_by staff, got %q", created.Sale.SoldBy)
	}

	flower := getFlower(t, api, staff, rose.ID)
	if flower.QuantityInStock != 7 || !flower.NeedsReorder {
		t.Fatalf("expected stock 7 needing reorder, got %d / %v", flower.QuantityInStock, flower.NeedsReorder)
	}

	res = doJSON(t, api, staff, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		FlowerID:  rose.ID,
		Quantity:  8,
		UnitPrice: decimal.RequireFromString("50.00"),
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("oversell: expected 409, got %d (%s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, staff, http.MethodGet, "/api/v1/sales", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list sales: expected 200, got %d", res.Code)
	}
	var list domain.SaleListResponse
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sales) != 1 || list.Stats.TotalQuantity != 3 {
		t.Fatalf("unexpected list %+v", list)
	}

	salePath := "/api/v1/sales/" + strconv.FormatInt(created.Sale.ID, 10)
	res = doJSON(t, api, staff, http.MethodDelete, salePath, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("staff delete: expected 403, got %d", res.Code)
	}
	res = doJSON(t, api, admin, http.MethodDelete, salePath, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d (%s)", res.Code, res.Body.String())
	}
	res = doJSON(t, api, admin, http.MethodDelete, salePath, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", res.Code)
	}

	flower = getFlower(t, api, staff, rose.ID)
	if flower.QuantityInStock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", flower.QuantityInStock)
	}
}

func TestCreateSaleValidationReturns400(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	rose := createFlower(t, api, admin, 10)

	res := doJSON(t, api, admin, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		FlowerID:      rose.ID,
		Quantity:      0,
		UnitPrice:     decimal.NewFromInt(1),
		PaymentMethod: domain.PaymentCash,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFlowerActionRejectsBadID(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")

	res := doJSON(t, api, admin, http.MethodGet, "/api/v1/flowers/abc", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/flowers/999", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSalesReportJSONAndCSV(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	rose := createFlower(t, api, admin, 20)

	res := doJSON(t, api, admin, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		FlowerID:  rose.ID,
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("12.50"),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", res.Code)
	}

	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/reports/sales", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d (%s)", res.Code, res.Body.String())
	}
	var report domain.SalesReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.TodayTotal.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected today total 25, got %s", report.TodayTotal)
	}
	if len(report.LastSevenDays) != 7 {
		t.Fatalf("expected 7 days, got %d", len(report.LastSevenDays))
	}
	if report.PaymentMethods[domain.PaymentCash] != 1 {
		t.Fatalf("expected one cash sale, got %v", report.PaymentMethods)
	}

	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/reports/sales?format=csv", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("csv: expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	if !strings.Contains(res.Body.String(), "summary,today_total,25.00") {
		t.Fatalf("csv missing today total:\n%s", res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "payment,cash,1") {
		t.Fatalf("csv missing payment row:\n%s", res.Body.String())
	}

	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/reports/sales?date=18-03-2026", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", res.Code)
	}
}

func TestStaffManagementByAdmin(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")

	res := doJSON(t, api, admin, http.MethodPost, "/api/v1/users/staff", domain.StaffCreateRequest{Username: "florist", Password: "petals-and-stems"})
	if res.Code != http.StatusCreated {
		t.Fatalf("create staff: expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	res = doJSON(t, api, admin, http.MethodPost, "/api/v1/users/staff", domain.StaffCreateRequest{Username: "florist", Password: "petals-and-stems"})
	if res.Code != http.StatusConflict {
		t.Fatalf("duplicate staff: expected 409, got %d", res.Code)
	}

	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/users/staff", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("list staff: expected 200, got %d", res.Code)
	}
	var body struct {
		Staff []domain.StaffUser `json:"staff"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode staff: %v", err)
	}
	if len(body.Staff) != 2 {
		t.Fatalf("expected staff and florist, got %+v", body.Staff)
	}

	login(t, api, "florist", "petals-and-stems")
}

func TestCustomerDuplicateEmailReturns409(t *testing.T) {
	api := newTestAPI(t)
	staff := login(t, api, "staff", "staff123")

	req := domain.CustomerRequest{Name: "Dana", Email: "dana@example.com"}
	if res := doJSON(t, api, staff, http.MethodPost, "/api/v1/customers", req); res.Code != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	if res := doJSON(t, api, staff, http.MethodPost, "/api/v1/customers", req); res.Code != http.StatusConflict {
		t.Fatalf("duplicate customer: expected 409, got %d", res.Code)
	}
}

func TestAdminResetsStaffPassword(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	staff := login(t, api, "staff", "staff123")

	res := doJSON(t, api, staff, http.MethodPut, "/api/v1/users/staff/staff", domain.StaffPasswordResetRequest{Password: "new-staff-pass"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("staff reset: expected 403, got %d", res.Code)
	}
	res = doJSON(t, api, admin, http.MethodPut, "/api/v1/users/staff/ghost", domain.StaffPasswordResetRequest{Password: "new-staff-pass"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("unknown staff: expected 404, got %d", res.Code)
	}
	res = doJSON(t, api, admin, http.MethodPut, "/api/v1/users/staff/staff", domain.StaffPasswordResetRequest{Password: "short"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", res.Code)
	}
	res = doJSON(t, api, admin, http.MethodGet, "/api/v1/users/staff/staff", nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("get on reset route: expected 405, got %d", res.Code)
	}

	res = doJSON(t, api, admin, http.MethodPut, "/api/v1/users/staff/staff", domain.StaffPasswordResetRequest{Password: "new-staff-pass"})
	if res.Code != http.StatusNoContent {
		t.Fatalf("reset: expected 204, got %d (%s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, "", http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "staff", Password: "staff123"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", res.Code)
	}
	login(t, api, "staff", "new-staff-pass")
}

func TestUpdateFlowerWithStaleStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	flower := createFlower(t, api, admin, 10)
	path := "/api/v1/flowers/" + strconv.FormatInt(flower.ID, 10)

	res := doJSON(t, api, admin, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		FlowerID: flower.ID, Quantity: 3, UnitPrice: decimal.RequireFromString("50.00"),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (%s)", res.Code, res.Body.String())
	}

	stale := 10
	req := domain.FlowerRequest{
		Name:                    "Rose",
		Category:                domain.CategoryRoses,
		Price:                   decimal.RequireFromString("50.00"),
		QuantityInStock:         25,
		ExpectedQuantityInStock: &stale,
	}
	res = doJSON(t, api, admin, http.MethodPut, path, req)
	if res.Code != http.StatusConflict {
		t.Fatalf("stale update: expected 409, got %d (%s)", res.Code, res.Body.String())
	}
	if got := getFlower(t, api, admin, flower.ID).QuantityInStock; got != 7 {
		t.Fatalf("expected stock to stay 7, got %d", got)
	}

	current := 7
	req.ExpectedQuantityInStock = &current
	res = doJSON(t, api, admin, http.MethodPut, path, req)
	if res.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", res.Code, res.Body.String())
	}
	if got := getFlower(t, api, admin, flower.ID).QuantityInStock; got != 25 {
		t.Fatalf("expected stock 25, got %d", got)
	}
}
