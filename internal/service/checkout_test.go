package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffetpos/internal/cart"
	"buffetpos/internal/domain"
	"buffetpos/internal/xid"
)

func cartOf(lines ...domain.Product) *cart.Cart {
	c := cart.New()
	for _, p := range lines {
		c.AddItem(p)
	}
	return c
}

func TestComposeSaleValidation(t *testing.T) {
	buffet := domain.Product{ID: "p1", Name: "Adult Buffet", Price: dec("24.90")}
	gen := xid.NewSeededInvoiceGenerator(7)

	cases := []struct {
		name string
		in   saleInput
		want error
	}{
		{"empty cart", saleInput{Cart: cart.New(), PaymentMethod: domain.PaymentCard}, ErrEmptyCart},
		{"negative discount", saleInput{Cart: cartOf(buffet), PaymentMethod: domain.PaymentCard, Discount: dec("-1")}, ErrValidation},
		{"unknown method", saleInput{Cart: cartOf(buffet), PaymentMethod: "voucher"}, ErrValidation},
		{"cash without amount", saleInput{Cart: cartOf(buffet), PaymentMethod: domain.PaymentCash}, ErrInsufficientPayment},
		{"sub-cent discount", saleInput{Cart: cartOf(buffet), PaymentMethod: domain.PaymentCard, Discount: dec("0.0049")}, ErrValidation},
		{"sub-cent cash", saleInput{Cart: cartOf(buffet), PaymentMethod: domain.PaymentCash, AmountReceived: decPtr("30.0106")}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.At = testNow
			tc.in.NextInvoice = gen.Next
			_, err := composeSale(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestComposeSaleSnapshotsLines(t *testing.T) {
	buffet := domain.Product{ID: "p1", Name: "Adult Buffet", Price: dec("24.90")}
	tea := domain.Product{ID: "p2", Name: "Iced Tea", Price: dec("3.00")}
	c := cartOf(buffet, tea, buffet)

	draft, err := composeSale(saleInput{
		Cart:           c,
		PaymentMethod:  domain.PaymentCash,
		Discount:       dec("2.80"),
		AmountReceived: decPtr("60"),
		CustomerID:     "c1",
		CashierID:      "u1",
		At:             testNow,
		NextInvoice:    xid.NewSeededInvoiceGenerator(7).Next,
	})
	require.NoError(t, err)

	assert.True(t, draft.Sale.Subtotal.Equal(dec("52.80")))
	assert.True(t, draft.Sale.Total.Equal(dec("50.00")))
	assert.True(t, draft.Sale.ChangeAmount.Equal(dec("10")))
	assert.Equal(t, 5, draft.LoyaltyEarned)
	assert.Regexp(t, `^INV-20260309-\d{4}$`, draft.Sale.InvoiceNumber)
	require.Len(t, draft.Items, 2)
	assert.Equal(t, draft.Sale.ID, draft.Items[0].SaleID)
	assert.Equal(t, 2, draft.Items[0].Quantity)
	assert.True(t, draft.Items[0].Subtotal.Equal(dec("49.80")))
	assert.Equal(t, "Iced Tea", draft.Items[1].ProductName)
}

func TestComposeSaleDiscountAboveSubtotal(t *testing.T) {
	draft, err := composeSale(saleInput{
		Cart:          cartOf(domain.Product{ID: "p1", Name: "Soup", Price: dec("50")}),
		PaymentMethod: domain.PaymentCash,
		Discount:      dec("60"),
		At:            testNow,
		NextInvoice:   func(at time.Time) string { return fmt.Sprintf("INV-%d", at.UnixMilli()) },
	})
	require.NoError(t, err)
	assert.True(t, draft.Sale.Total.IsZero())
	assert.True(t, draft.Sale.ChangeAmount.IsZero())
	assert.Zero(t, draft.LoyaltyEarned)
	assert.Equal(t, "INV-1773057600000", draft.Sale.InvoiceNumber)
}

func TestLoyaltyPoints(t *testing.T) {
	cases := map[string]int{
		"0":     0,
		"9.99":  0,
		"10":    1,
		"47.00": 4,
		"99.99": 9,
		"-20":   0,
	}
	for total, want := range cases {
		assert.Equal(t, want, loyaltyPoints(dec(total)), "total %s", total)
	}
}
