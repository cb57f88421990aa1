package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buffetpos/internal/domain"
)

// SalesReport summarises completed sales and expenses between from and to.
// Either bound may be nil. Refunded sales are counted but excluded from revenue.
func (s *Service) SalesReport(ctx context.Context, from, to *time.Time) (*domain.SalesReport, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, validationError("to must not be before from")
	}

	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	report := &domain.SalesReport{
		From:               formatBound(from),
		To:                 formatBound(to),
		Revenue:            decimal.Zero,
		Expenses:           decimal.Zero,
		Discounts:          decimal.Zero,
		AverageSale:        decimal.Zero,
		Daily:              []domain.DailyRevenue{},
		ByPayment:          []domain.PaymentBreakdown{},
		ExpensesByCategory: map[string]decimal.Decimal{},
	}

	daily := map[string]*domain.DailyRevenue{}
	payments := map[string]*domain.PaymentBreakdown{}
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			report.RefundedSales++
			continue
		}
		report.Transactions++
		report.Revenue = report.Revenue.Add(sale.Total)
		report.Discounts = report.Discounts.Add(sale.Discount)

		day := sale.CreatedAt.UTC().Format("2006-01-02")
		bucket, ok := daily[day]
		if !ok {
			bucket = &domain.DailyRevenue{Date: day, Revenue: decimal.Zero}
			daily[day] = bucket
		}
		bucket.Transactions++
		bucket.Revenue = bucket.Revenue.Add(sale.Total)

		pay, ok := payments[sale.PaymentMethod]
		if !ok {
			pay = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod, Total: decimal.Zero}
			payments[sale.PaymentMethod] = pay
		}
		pay.Transactions++
		pay.Total = pay.Total.Add(sale.Total)
	}

	for _, expense := range expenses {
		report.Expenses = report.Expenses.Add(expense.Amount)
		category := expense.Category
		report.ExpensesByCategory[category] = report.ExpensesByCategory[category].Add(expense.Amount)
	}

	report.Profit = report.Revenue.Sub(report.Expenses)
	if report.Transactions > 0 {
		report.AverageSale = report.Revenue.Div(decimal.NewFromInt(int64(report.Transactions))).Round(2)
	}

	for _, bucket := range daily {
		report.Daily = append(report.Daily, *bucket)
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })

	for _, pay := range payments {
		report.ByPayment = append(report.ByPayment, *pay)
	}
	sort.Slice(report.ByPayment, func(i, j int) bool {
		return report.ByPayment[i].PaymentMethod < report.ByPayment[j].PaymentMethod
	})
	return report, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// SalesReportCSV flattens a report into section,key,value rows.
func SalesReportCSV(report domain.SalesReport) string {
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "from", report.From},
		{"summary", "to", report.To},
		{"summary", "transactions", strconv.Itoa(report.Transactions)},
		{"summary", "refunded_sales", strconv.Itoa(report.RefundedSales)},
		{"summary", "revenue", report.Revenue.StringFixed(2)},
		{"summary", "discounts", report.Discounts.StringFixed(2)},
		{"summary", "expenses", report.Expenses.StringFixed(2)},
		{"summary", "profit", report.Profit.StringFixed(2)},
		{"summary", "average_sale", report.AverageSale.StringFixed(2)},
	}
	for _, day := range report.Daily {
		rows = append(rows,
			[]string{"daily", day.Date + "_transactions", strconv.Itoa(day.Transactions)},
			[]string{"daily", day.Date + "_revenue", day.Revenue.StringFixed(2)},
		)
	}
	for _, pay := range report.ByPayment {
		rows = append(rows,
			[]string{"payment", pay.PaymentMethod + "_transactions", strconv.Itoa(pay.Transactions)},
			[]string{"payment", pay.PaymentMethod + "_total", pay.Total.StringFixed(2)},
		)
	}

	categories := make([]string, 0, len(report.ExpensesByCategory))
	for category := range report.ExpensesByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		rows = append(rows, []string{"expense", category, report.ExpensesByCategory[category].StringFixed(2)})
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	// Writes to a strings.Builder cannot fail.
	_ = w.WriteAll(rows)
	return buf.String()
}
