package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
	"buffetpos/internal/store/memory"
)

type mapCache struct {
	mu          sync.Mutex
	items       map[string]domain.Product
	hits        int
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]domain.Product{}}
}

func (c *mapCache) GetProduct(_ context.Context, barcode string) (*domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[barcode]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &p, true, nil
}

func (c *mapCache) SetProduct(_ context.Context, barcode string, product *domain.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[barcode] = *product
	return nil
}

func (c *mapCache) InvalidateProduct(_ context.Context, barcode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, barcode)
	c.invalidated = append(c.invalidated, barcode)
	return nil
}

func TestCreateProductWithInitialStock(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, Options{})

	p, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name:         "  Salmon Nigiri  ",
		Barcode:      "2000000000018",
		Price:        dec("2.50"),
		InitialStock: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, "Salmon Nigiri", p.Name)
	assert.True(t, p.IsActive)

	rec, err := svc.GetInventory(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, rec.Quantity)
	assert.Equal(t, 10, rec.MinQuantity)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t, memory.New(), Options{})
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: " ", Price: dec("1")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("-1")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "price")

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("1"), Cost: decPtr("-0.5")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("1"), InitialStock: -2})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMoneyInputsLimitedToCents(t *testing.T) {
	svc := newTestService(t, memory.New(), Options{})
	ctx := WithActor(context.Background(), domain.Actor{ID: "u-manager", Role: domain.RoleManager})

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("1.005")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "price")

	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("1"), Cost: decPtr("0.333")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "cost")

	p, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Soup", Price: dec("1.50"), Cost: decPtr("0.75")})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, p.ID, domain.ProductUpdateRequest{Price: decPtr("1.999")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateProduct(ctx, p.ID, domain.ProductUpdateRequest{Cost: decPtr("0.001")})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(dec("1.50")))

	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("10.001")})
	assert.ErrorIs(t, err, ErrValidation)

	e, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("10.00")})
	require.NoError(t, err)
	_, err = svc.UpdateExpense(ctx, e.ID, domain.ExpenseUpdateRequest{Amount: decPtr("4.005")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBarcodeLookupUsesCache(t *testing.T) {
	repo := memory.New()
	c := newMapCache()
	svc := newTestService(t, repo, Options{Cache: c})
	p, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Iced Tea", Barcode: "1000000000035", Price: dec("3")})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.GetProductByBarcode(context.Background(), "1000000000035")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	}
	assert.Equal(t, 1, c.hits)

	newCode := "1000000000036"
	_, err = svc.UpdateProduct(context.Background(), p.ID, domain.ProductUpdateRequest{Barcode: &newCode})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1000000000035", "1000000000036"}, c.invalidated)

	_, err = svc.GetProductByBarcode(context.Background(), "1000000000035")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRestockInventory(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, Options{})
	p := stockedProduct(t, svc, "Mango Pudding", "5.00", 3)

	rec, err := svc.RestockInventory(context.Background(), p.ID, domain.InventoryRestockRequest{Quantity: 30})
	require.NoError(t, err)
	assert.Equal(t, 30, rec.Quantity)
	require.NotNil(t, rec.LastRestockedAt)
	assert.True(t, rec.LastRestockedAt.Equal(testNow))

	_, err = svc.RestockInventory(context.Background(), p.ID, domain.InventoryRestockRequest{Quantity: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerValidationAndLoyalty(t *testing.T) {
	svc := newTestService(t, memory.New(), Options{})
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	c, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Budi", Email: "budi@example.com"})
	require.NoError(t, err)

	updated, err := svc.AdjustLoyalty(ctx, c.ID, domain.LoyaltyAdjustRequest{Points: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.LoyaltyPoints)

	_, err = svc.AdjustLoyalty(ctx, c.ID, domain.LoyaltyAdjustRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	empty := ""
	_, err = svc.UpdateCustomer(ctx, c.ID, domain.CustomerUpdateRequest{Name: &empty})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpsertSettingValidatesKnownKeys(t *testing.T) {
	svc := newTestService(t, memory.New(), Options{})
	ctx := context.Background()

	s, err := svc.UpsertSetting(ctx, domain.SettingCurrency, domain.SettingUpsertRequest{Value: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", s.Value)

	_, err = svc.UpsertSetting(ctx, domain.SettingCurrency, domain.SettingUpsertRequest{Value: "euros"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpsertSetting(ctx, domain.SettingTaxRate, domain.SettingUpsertRequest{Value: "-3"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpsertSetting(ctx, domain.SettingReceiptFooter, domain.SettingUpsertRequest{Value: "Come back soon"})
	require.NoError(t, err)
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, Options{})

	p, err := svc.CreateUser(context.Background(), domain.ProfileCreateRequest{
		Username: " Cashier2 ",
		Password: "s3cret-pass",
		Role:     domain.RoleCashier,
	})
	require.NoError(t, err)
	assert.Equal(t, "cashier2", p.Username)

	stored, err := repo.GetProfileByUsername(context.Background(), "cashier2")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))

	_, err = svc.CreateUser(context.Background(), domain.ProfileCreateRequest{Username: "cashier2", Password: "another1", Role: domain.RoleCashier})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.CreateUser(context.Background(), domain.ProfileCreateRequest{Username: "boss", Password: "another1", Role: "owner"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, Options{})
	admin, err := repo.CreateProfile(context.Background(), domain.Profile{Username: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)
	other, err := repo.CreateProfile(context.Background(), domain.Profile{Username: "sari", Role: domain.RoleCashier})
	require.NoError(t, err)
	ctx := WithActor(context.Background(), domain.Actor{ID: admin.ID, Username: admin.Username, Role: domain.RoleAdmin})

	_, err = svc.UpdateRole(ctx, admin.ID, domain.RoleUpdateRequest{Role: domain.RoleManager})
	assert.ErrorIs(t, err, ErrForbidden)

	promoted, err := svc.UpdateRole(ctx, other.ID, domain.RoleUpdateRequest{Role: domain.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, promoted.Role)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newTestService(t, memory.New(), Options{})

	created, err := svc.EnsureAdmin(context.Background(), "owner", "long-enough-pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(context.Background(), "OWNER", "long-enough-pw")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestExpenseLifecycle(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, Options{})
	ctx := WithActor(context.Background(), domain.Actor{ID: "u-manager", Role: domain.RoleManager})

	e, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("120.50")})
	require.NoError(t, err)
	assert.Equal(t, "u-manager", e.RecordedBy)
	assert.Equal(t, "2026-03-09", e.ExpenseDate.Format("2006-01-02"))

	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("0")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("3"), ExpenseDate: "09/03/2026"})
	assert.ErrorIs(t, err, ErrValidation)

	date := "2026-03-01"
	updated, err := svc.UpdateExpense(ctx, e.ID, domain.ExpenseUpdateRequest{ExpenseDate: &date})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", updated.ExpenseDate.Format("2006-01-02"))

	require.NoError(t, svc.DeleteExpense(ctx, e.ID))
	assert.ErrorIs(t, svc.DeleteExpense(ctx, e.ID), store.ErrNotFound)
}

func TestSalesReport(t *testing.T) {
	repo := memory.New()
	day := testNow
	svc := newTestService(t, repo, Options{Now: func() time.Time { return day }})
	ctx := cashierContext(t, repo)
	p := stockedProduct(t, svc, "Adult Buffet", "25.00", 100)

	checkout := func(method string, qty int) *domain.CheckoutResponse {
		t.Helper()
		resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
			Items:          []domain.CheckoutLine{{ProductID: p.ID, Quantity: qty}},
			PaymentMethod:  method,
			AmountReceived: decPtr("1000"),
		})
		require.NoError(t, err)
		return resp
	}

	checkout(domain.PaymentCash, 2)
	refundMe := checkout(domain.PaymentCard, 1)
	day = testNow.Add(24 * time.Hour)
	checkout(domain.PaymentCard, 1)

	_, err := svc.RefundSale(ctx, refundMe.Sale.ID)
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Produce", Amount: dec("30"), ExpenseDate: "2026-03-09"})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Category: "Gas, water", Amount: dec("5"), ExpenseDate: "2026-03-10"})
	require.NoError(t, err)

	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	report, err := svc.SalesReport(context.Background(), &from, &to)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Transactions)
	assert.Equal(t, 1, report.RefundedSales)
	assert.True(t, report.Revenue.Equal(dec("75")), "revenue %s", report.Revenue)
	assert.True(t, report.Expenses.Equal(dec("35")))
	assert.True(t, report.Profit.Equal(dec("40")))
	assert.True(t, report.AverageSale.Equal(dec("37.5")))
	require.Len(t, report.Daily, 2)
	assert.Equal(t, "2026-03-09", report.Daily[0].Date)
	assert.True(t, report.Daily[0].Revenue.Equal(dec("50")))
	require.Len(t, report.ByPayment, 2)
	assert.Equal(t, domain.PaymentCard, report.ByPayment[0].PaymentMethod)
	assert.Equal(t, 1, report.ByPayment[0].Transactions)

	csv := SalesReportCSV(*report)
	assert.True(t, strings.HasPrefix(csv, "section,key,value\n"))
	assert.Contains(t, csv, "summary,revenue,75.00\n")
	assert.Contains(t, csv, "payment,cash_total,50.00\n")
	assert.Contains(t, csv, "expense,\"Gas, water\",5.00\n")
	assert.NotContains(t, csv, "\r\n")

	_, err = svc.SalesReport(context.Background(), &to, &from)
	assert.ErrorIs(t, err, ErrValidation)
}
