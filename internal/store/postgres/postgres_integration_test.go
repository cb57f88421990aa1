package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
)

func TestCheckoutAndRefundCountersAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("BUFFETPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BUFFETPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	product, err := s.CreateProduct(ctx, domain.Product{
		Name:     fmt.Sprintf("Integration Buffet %d", stamp),
		Price:    decimal.RequireFromString("23.50"),
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Integration Guest", TotalPurchases: decimal.Zero})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE customer_id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customer.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})
	if _, err := s.UpsertInventory(ctx, domain.InventoryRecord{ProductID: product.ID, Quantity: 2, MinQuantity: 1}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	total := decimal.RequireFromString("47.00")
	var saleID string
	err = s.WithinTx(ctx, func(tx store.Repository) error {
		sale, err := tx.CreateSale(ctx, domain.Sale{
			InvoiceNumber:  fmt.Sprintf("INV-IT-%d", stamp),
			CustomerID:     customer.ID,
			Subtotal:       total,
			Total:          total,
			PaymentMethod:  domain.PaymentCard,
			AmountReceived: total,
			Status:         domain.SaleStatusCompleted,
		})
		if err != nil {
			return err
		}
		saleID = sale.ID
		if _, err := tx.CreateSaleItems(ctx, sale.ID, []domain.SaleItem{{
			ProductID: product.ID, ProductName: product.Name, Quantity: 5, UnitPrice: product.Price, Subtotal: total,
		}}); err != nil {
			return err
		}
		if err := tx.DecrementInventory(ctx, product.ID, 5); err != nil {
			return err
		}
		return tx.RecordCustomerPurchase(ctx, customer.ID, total, 4)
	})
	if err != nil {
		t.Fatalf("checkout tx: %v", err)
	}

	rec, err := s.GetInventoryByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if rec.Quantity != 0 {
		t.Fatalf("expected inventory clamped to 0, got %d", rec.Quantity)
	}

	if _, err := s.MarkSaleRefunded(ctx, saleID); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := s.MarkSaleRefunded(ctx, saleID); err != store.ErrAlreadyRefunded {
		t.Fatalf("expected ErrAlreadyRefunded on second refund, got %v", err)
	}
}
