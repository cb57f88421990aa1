package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buffetpos/internal/cart"
	"buffetpos/internal/domain"
	"buffetpos/internal/receipt"
	"buffetpos/internal/store"
	"buffetpos/internal/xid"
)

type saleInput struct {
	Cart           *cart.Cart
	PaymentMethod  string
	Discount       decimal.Decimal
	AmountReceived *decimal.Decimal
	CustomerID     string
	CashierID      string
	Notes          string
	At             time.Time
	NextInvoice    func(time.Time) string
}

type saleDraft struct {
	Sale          domain.Sale
	Items         []domain.SaleItem
	LoyaltyEarned int
}

// composeSale turns a cart into a sale header and item rows without touching
// storage.
func composeSale(in saleInput) (saleDraft, error) {
	if in.Cart == nil || in.Cart.IsEmpty() {
		return saleDraft{}, ErrEmptyCart
	}
	if in.Discount.IsNegative() {
		return saleDraft{}, validationError("discount must not be negative")
	}
	if err := checkMoney("discount", in.Discount); err != nil {
		return saleDraft{}, err
	}
	if in.AmountReceived != nil {
		if err := checkMoney("amount_received", *in.AmountReceived); err != nil {
			return saleDraft{}, err
		}
	}
	if !domain.IsValidPaymentMethod(in.PaymentMethod) {
		return saleDraft{}, validationError("unsupported payment method %q", in.PaymentMethod)
	}

	subtotal := in.Cart.Subtotal()
	total := in.Cart.Total(in.Discount)

	received := total
	change := decimal.Zero
	if in.PaymentMethod == domain.PaymentCash {
		received = decimal.Zero
		if in.AmountReceived != nil {
			received = *in.AmountReceived
		}
		if received.LessThan(total) {
			return saleDraft{}, ErrInsufficientPayment
		}
		change = received.Sub(total)
	}

	sale := domain.Sale{
		ID:             xid.New(),
		InvoiceNumber:  in.NextInvoice(in.At),
		CustomerID:     strings.TrimSpace(in.CustomerID),
		CashierID:      in.CashierID,
		Subtotal:       subtotal,
		Discount:       in.Discount,
		Tax:            decimal.Zero,
		Total:          total,
		PaymentMethod:  in.PaymentMethod,
		AmountReceived: received,
		ChangeAmount:   change,
		Status:         domain.SaleStatusCompleted,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedAt:      in.At,
	}

	lines := in.Cart.Items()
	items := make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleItem{
			SaleID:      sale.ID,
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.Price,
			Subtotal:    line.Subtotal(),
			CreatedAt:   in.At,
		})
	}

	draft := saleDraft{Sale: sale, Items: items}
	if sale.CustomerID != "" {
		draft.LoyaltyEarned = loyaltyPoints(total)
	}
	return draft, nil
}

// loyaltyPoints awards one point per whole ten currency units.
func loyaltyPoints(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(decimal.NewFromInt(pointsPerCurrency)).Floor().IntPart())
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}

	c, err := s.buildCart(ctx, req.Items)
	if err != nil {
		s.checkoutFailed(err)
		return nil, err
	}

	draft, err := composeSale(saleInput{
		Cart:           c,
		PaymentMethod:  method,
		Discount:       req.Discount,
		AmountReceived: req.AmountReceived,
		CustomerID:     req.CustomerID,
		CashierID:      actor.ID,
		Notes:          req.Notes,
		At:             s.now(),
		NextInvoice:    s.invoices.Next,
	})
	if err != nil {
		s.checkoutFailed(err)
		return nil, err
	}

	err = s.repo.WithinTx(ctx, func(tx store.Repository) error {
		return s.applySale(ctx, tx, &draft)
	})
	if err != nil {
		s.checkoutFailed(err)
		s.log.Error().Err(err).Str("invoice", draft.Sale.InvoiceNumber).Msg("checkout rolled back")
		return nil, err
	}

	sale := draft.Sale
	if full, err := s.repo.GetSale(ctx, sale.ID); err == nil {
		sale = *full
	} else {
		s.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("reload committed sale")
	}

	s.metrics.CheckoutCompleted(sale.PaymentMethod, sale.Total.InexactFloat64())
	s.log.Info().
		Str("sale_id", sale.ID).
		Str("invoice", sale.InvoiceNumber).
		Str("cashier", actor.Username).
		Str("payment_method", sale.PaymentMethod).
		Str("total", sale.Total.StringFixed(2)).
		Int("items", len(sale.Items)).
		Msg("sale completed")

	resp := &domain.CheckoutResponse{Sale: sale, LoyaltyEarned: draft.LoyaltyEarned}
	if s.printer != nil {
		if err := s.printReceipt(ctx, sale, draft.LoyaltyEarned); err != nil {
			s.metrics.ReceiptFailed()
			s.log.Warn().Err(err).Str("invoice", sale.InvoiceNumber).Msg("receipt print failed")
			resp.ReceiptWarning = "sale saved but the receipt could not be printed"
		} else {
			resp.ReceiptPrinted = true
		}
	}
	return resp, nil
}

func (s *Service) buildCart(ctx context.Context, lines []domain.CheckoutLine) (*cart.Cart, error) {
	c := cart.New()
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, validationError("product_id is required")
		}
		if line.Quantity < 1 {
			return nil, validationError("quantity for %s must be at least 1", productID)
		}
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", productID, err)
		}
		if !product.IsActive {
			return nil, validationError("product %s is not available", product.Name)
		}
		c.AddItem(*product)
		c.ChangeQuantity(product.ID, line.Quantity-1)
	}
	return c, nil
}

// applySale persists a composed sale. Every step runs on tx, so a failure
// anywhere discards the earlier writes.
func (s *Service) applySale(ctx context.Context, tx store.Repository, draft *saleDraft) error {
	sale, err := tx.CreateSale(ctx, draft.Sale)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	items, err := tx.CreateSaleItems(ctx, sale.ID, draft.Items)
	if err != nil {
		return fmt.Errorf("insert sale items: %w", err)
	}

	for _, item := range items {
		err := tx.DecrementInventory(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("decrement inventory for %s: %w", item.ProductID, err)
		}
	}

	if sale.CustomerID != "" {
		if err := tx.RecordCustomerPurchase(ctx, sale.CustomerID, sale.Total, draft.LoyaltyEarned); err != nil {
			return fmt.Errorf("record customer purchase: %w", err)
		}
	}

	sale.Items = items
	draft.Sale = *sale
	draft.Items = items
	return nil
}

func (s *Service) checkoutFailed(err error) {
	reason := "store"
	switch {
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.Is(err, ErrInsufficientPayment):
		reason = "insufficient_payment"
	case errors.Is(err, ErrValidation):
		reason = "validation"
	case errors.Is(err, store.ErrNotFound):
		reason = "not_found"
	}
	s.metrics.CheckoutFailed(reason)
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultSalesLimit
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, strings.TrimSpace(id))
}

func (s *Service) renderReceipt(ctx context.Context, sale domain.Sale, loyaltyEarned int) (receipt.Receipt, error) {
	settings, err := s.settingsMap(ctx)
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("load settings: %w", err)
	}
	return receipt.Render(sale, receipt.SettingsFromMap(settings), loyaltyEarned), nil
}

func (s *Service) printReceipt(ctx context.Context, sale domain.Sale, loyaltyEarned int) error {
	r, err := s.renderReceipt(ctx, sale, loyaltyEarned)
	if err != nil {
		return err
	}
	return s.printer.Print(ctx, r.Bytes)
}

// BuildReceipt renders a stored sale for download or reprint.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (*domain.ReceiptResponse, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(saleID))
	if err != nil {
		return nil, err
	}
	earned := 0
	if sale.CustomerID != "" {
		earned = loyaltyPoints(sale.Total)
	}
	r, err := s.renderReceipt(ctx, *sale, earned)
	if err != nil {
		return nil, err
	}
	return &domain.ReceiptResponse{
		SaleID:       sale.ID,
		EscposBase64: base64.StdEncoding.EncodeToString(r.Bytes),
		PreviewText:  r.Preview(),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.InvoiceNumber),
	}, nil
}

// OpenCashDrawer pulses the drawer wired to the receipt printer.
func (s *Service) OpenCashDrawer(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if s.printer == nil {
		return ErrNoPrinter
	}
	if err := s.printer.Print(ctx, receipt.DrawerKick()); err != nil {
		s.metrics.ReceiptFailed()
		return fmt.Errorf("open cash drawer: %w", err)
	}
	s.log.Info().Str("by", actor.Username).Msg("cash drawer opened")
	return nil
}
