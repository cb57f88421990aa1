package receipt

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffetpos/internal/domain"
)

func sampleSale(method string) domain.Sale {
	d := decimal.RequireFromString
	return domain.Sale{
		InvoiceNumber:  "INV-20260301-0042",
		Subtotal:       d("49.80"),
		Discount:       d("0"),
		Tax:            d("0"),
		Total:          d("49.80"),
		PaymentMethod:  method,
		AmountReceived: d("50.00"),
		ChangeAmount:   d("0.20"),
		Status:         domain.SaleStatusCompleted,
		CreatedAt:      time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Cashier:        &domain.Profile{Username: "cashier", FullName: "Dewi"},
		Items: []domain.SaleItem{
			{ProductName: "Adult Buffet", Quantity: 2, UnitPrice: d("24.90"), Subtotal: d("49.80")},
		},
	}
}

func TestRenderCashReceipt(t *testing.T) {
	r := Render(sampleSale(domain.PaymentCash), SettingsFromMap(map[string]string{
		domain.SettingStoreName:     "Sakura Buffet",
		domain.SettingReceiptFooter: "See you again",
	}), 4)

	preview := r.Preview()
	assert.True(t, strings.HasPrefix(preview, "Sakura Buffet"))
	assert.Contains(t, preview, "INV-20260301-0042")
	assert.Contains(t, preview, "Adult Buffet x2")
	assert.Contains(t, preview, "49.80")
	assert.Contains(t, preview, "Cashier: Dewi")
	assert.Contains(t, preview, "Points earned: 4")
	assert.Contains(t, preview, "See you again")

	assert.True(t, bytes.HasPrefix(r.Bytes, escInit))
	assert.True(t, bytes.HasSuffix(r.Bytes, escDrawerPin), "cash receipts should kick the drawer")
}

func TestRenderCardReceiptSkipsDrawer(t *testing.T) {
	r := Render(sampleSale(domain.PaymentCard), SettingsFromMap(nil), 0)

	assert.True(t, bytes.HasSuffix(r.Bytes, escCut))
	assert.NotContains(t, r.Preview(), "Points earned")
	assert.Contains(t, r.Preview(), "Thank you")
}

func TestNetworkPrinterWritesPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			got <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		got <- data
	}()

	payload := Render(sampleSale(domain.PaymentCash), SettingsFromMap(nil), 0).Bytes
	p := NewNetworkPrinter(ln.Addr().String(), time.Second)
	require.NoError(t, p.Print(context.Background(), payload))

	select {
	case data := <-got:
		assert.Equal(t, payload, data)
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received the receipt")
	}
}

func TestNetworkPrinterUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = NewNetworkPrinter(addr, 200*time.Millisecond).Print(context.Background(), []byte("x"))
	assert.Error(t, err)
}
