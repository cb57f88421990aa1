package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
)

func seedProduct(t *testing.T, s *Store, name string, qty int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProduct(ctx, domain.Product{Name: name, Price: decimal.NewFromInt(10), IsActive: true})
	require.NoError(t, err)
	_, err = s.UpsertInventory(ctx, domain.InventoryRecord{ProductID: p.ID, Quantity: qty, MinQuantity: 5})
	require.NoError(t, err)
	return *p
}

func TestDecrementInventoryClampsAtZero(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "Iced Tea", 2)

	require.NoError(t, s.DecrementInventory(ctx, p.ID, 5))

	rec, err := s.GetInventoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Quantity)

	require.NoError(t, s.IncrementInventory(ctx, p.ID, 3))
	rec, err = s.GetInventoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Quantity)

	assert.ErrorIs(t, s.DecrementInventory(ctx, "missing", 1), store.ErrNotFound)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "Buffet", 10)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx store.Repository) error {
		if err := tx.DecrementInventory(ctx, p.ID, 4); err != nil {
			return err
		}
		if _, err := tx.CreateSale(ctx, domain.Sale{InvoiceNumber: "INV-1", Status: domain.SaleStatusCompleted}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.GetInventoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Quantity)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestWithinTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "Buffet", 10)

	err := s.WithinTx(ctx, func(tx store.Repository) error {
		return tx.DecrementInventory(ctx, p.ID, 3)
	})
	require.NoError(t, err)

	rec, err := s.GetInventoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Quantity)
}

func TestConcurrentDecrementsDoNotLoseUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "Buffet", 100)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinTx(ctx, func(tx store.Repository) error {
				return tx.DecrementInventory(ctx, p.ID, 2)
			})
		}()
	}
	wg.Wait()

	rec, err := s.GetInventoryByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Quantity)
}

func TestMarkSaleRefundedIsOneWay(t *testing.T) {
	s := New()
	ctx := context.Background()

	sale, err := s.CreateSale(ctx, domain.Sale{InvoiceNumber: "INV-20260101-0001", Status: domain.SaleStatusCompleted})
	require.NoError(t, err)

	refunded, err := s.MarkSaleRefunded(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusRefunded, refunded.Status)

	_, err = s.MarkSaleRefunded(ctx, sale.ID)
	assert.ErrorIs(t, err, store.ErrAlreadyRefunded)

	_, err = s.MarkSaleRefunded(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateSaleRejectsDuplicateInvoice(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateSale(ctx, domain.Sale{InvoiceNumber: "INV-20260101-4242", Status: domain.SaleStatusCompleted})
	require.NoError(t, err)
	_, err = s.CreateSale(ctx, domain.Sale{InvoiceNumber: "INV-20260101-4242", Status: domain.SaleStatusCompleted})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestGetSaleJoinsItemsCustomerAndCashier(t *testing.T) {
	s := NewSeeded(SeedCredentials{})
	ctx := context.Background()

	cashier, err := s.GetProfileByUsername(ctx, "CASHIER")
	require.NoError(t, err)
	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, customers)

	sale, err := s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: "INV-20260101-0002",
		CashierID:     cashier.ID,
		CustomerID:    customers[0].ID,
		Status:        domain.SaleStatusCompleted,
	})
	require.NoError(t, err)
	_, err = s.CreateSaleItems(ctx, sale.ID, []domain.SaleItem{{ProductName: "Adult Buffet", Quantity: 2}})
	require.NoError(t, err)

	got, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, sale.ID, got.Items[0].SaleID)
	require.NotNil(t, got.Customer)
	require.NotNil(t, got.Cashier)
	assert.Empty(t, got.Cashier.PasswordHash)
}

func TestNewSeededUsesGivenCredentials(t *testing.T) {
	s := NewSeeded(SeedCredentials{ManagerPassword: "floor-pass"})
	ctx := context.Background()

	manager, err := s.GetProfileByUsername(ctx, "manager")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte("floor-pass")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte("manager123")))

	cashier, err := s.GetProfileByUsername(ctx, "cashier")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cashier.PasswordHash), []byte("cashier123")))
}

func TestCustomerPurchaseCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	c, err := s.CreateCustomer(ctx, domain.Customer{Name: "Rina", TotalPurchases: decimal.Zero})
	require.NoError(t, err)

	require.NoError(t, s.RecordCustomerPurchase(ctx, c.ID, decimal.RequireFromString("47.00"), 4))
	require.NoError(t, s.ReverseCustomerPurchase(ctx, c.ID, decimal.RequireFromString("60.00")))

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPurchases.IsZero(), "total purchases should floor at zero, got %s", got.TotalPurchases)
	assert.Equal(t, 4, got.LoyaltyPoints)

	updated, err := s.AddLoyaltyPoints(ctx, c.ID, -6)
	require.NoError(t, err)
	assert.Equal(t, -2, updated.LoyaltyPoints)
}

func TestSearchAndLowStock(t *testing.T) {
	s := NewSeeded(SeedCredentials{})
	ctx := context.Background()

	found, err := s.SearchProducts(ctx, "buffet", 20)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	byBarcode, err := s.SearchProducts(ctx, "0000000035", 20)
	require.NoError(t, err)
	require.Len(t, byBarcode, 1)
	assert.Equal(t, "Iced Tea", byBarcode[0].Name)

	low, err := s.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Extra Sashimi Platter", low[0].Product.Name)
}

func TestDeleteProductCascadesInventory(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProduct(t, s, "Mango Pudding", 4)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	_, err := s.GetInventoryByProduct(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListExpensesByDateRange(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC) }

	for _, d := range []int{1, 5, 9} {
		_, err := s.CreateExpense(ctx, domain.Expense{Category: "Supplies", Amount: decimal.NewFromInt(int64(d)), ExpenseDate: day(d)})
		require.NoError(t, err)
	}

	from, to := day(2), day(9)
	got, err := s.ListExpenses(ctx, &from, &to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ExpenseDate.Equal(day(9)))
}
