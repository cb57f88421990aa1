package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
)

// RefundSale reverses a completed sale: stock goes back on the shelf and the
// customer's purchase total is reduced. Loyalty points already earned are kept.
func (s *Service) RefundSale(ctx context.Context, id string) (*domain.Sale, error) {
	id = strings.TrimSpace(id)
	var refunded *domain.Sale

	err := s.repo.WithinTx(ctx, func(tx store.Repository) error {
		sale, err := tx.GetSale(ctx, id)
		if err != nil {
			return err
		}
		if sale.Status != domain.SaleStatusCompleted {
			return store.ErrAlreadyRefunded
		}

		marked, err := tx.MarkSaleRefunded(ctx, sale.ID)
		if err != nil {
			return fmt.Errorf("mark sale refunded: %w", err)
		}

		for _, item := range sale.Items {
			if item.ProductID == "" {
				continue
			}
			err := tx.IncrementInventory(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("restore inventory for %s: %w", item.ProductID, err)
			}
		}

		if sale.CustomerID != "" {
			err := tx.ReverseCustomerPurchase(ctx, sale.CustomerID, sale.Total)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("reverse customer purchase: %w", err)
			}
		}

		marked.Items = sale.Items
		marked.Customer = sale.Customer
		marked.Cashier = sale.Cashier
		refunded = marked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RefundCompleted()
	event := s.log.Info().Str("sale_id", refunded.ID).Str("invoice", refunded.InvoiceNumber).Str("total", refunded.Total.StringFixed(2))
	if actor, ok := ActorFromContext(ctx); ok {
		event = event.Str("by", actor.Username)
	}
	event.Msg("sale refunded")
	return refunded, nil
}
