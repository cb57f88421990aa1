// Package receipt renders completed sales as ESC/POS byte streams and
// delivers them to a thermal printer.
package receipt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"buffetpos/internal/domain"
)

var (
	escInit      = []byte{0x1b, 0x40}
	escCut       = []byte{0x1d, 0x56, 0x41, 0x10}
	escDrawerPin = []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
)

const (
	ruleHeavy = "========================"
	ruleLight = "------------------------"
)

type Settings struct {
	StoreName string
	Currency  string
	Footer    string
}

func SettingsFromMap(values map[string]string) Settings {
	s := Settings{
		StoreName: strings.TrimSpace(values[domain.SettingStoreName]),
		Currency:  strings.TrimSpace(values[domain.SettingCurrency]),
		Footer:    strings.TrimSpace(values[domain.SettingReceiptFooter]),
	}
	if s.StoreName == "" {
		s.StoreName = "Buffet POS"
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}
	if s.Footer == "" {
		s.Footer = "Thank you"
	}
	return s
}

type Receipt struct {
	Lines []string
	Bytes []byte
}

func (r Receipt) Preview() string {
	return strings.Join(r.Lines, "\n")
}

// Render lays out a sale. Cash sales end with a drawer kick after the cut.
func Render(sale domain.Sale, settings Settings, loyaltyEarned int) Receipt {
	money := newFormatter(settings.Currency)

	lines := []string{
		settings.StoreName,
		ruleHeavy,
		"Invoice: " + sale.InvoiceNumber,
		"Date: " + sale.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if sale.Cashier != nil {
		lines = append(lines, "Cashier: "+displayName(*sale.Cashier))
	}
	if sale.Customer != nil {
		lines = append(lines, "Customer: "+sale.Customer.Name)
	}
	lines = append(lines, ruleLight)
	for _, item := range sale.Items {
		lines = append(lines, fmt.Sprintf("%s x%d @ %s", item.ProductName, item.Quantity, money(item.UnitPrice)))
		lines = append(lines, "  "+money(item.Subtotal))
	}
	lines = append(lines,
		ruleLight,
		"Subtotal : "+money(sale.Subtotal),
		"Discount : "+money(sale.Discount),
		"Tax      : "+money(sale.Tax),
		"Total    : "+money(sale.Total),
		"Payment  : "+strings.ToUpper(sale.PaymentMethod),
		"Paid     : "+money(sale.AmountReceived),
		"Change   : "+money(sale.ChangeAmount),
	)
	if loyaltyEarned > 0 {
		lines = append(lines, fmt.Sprintf("Points earned: %d", loyaltyEarned))
	}
	if sale.Status == domain.SaleStatusRefunded {
		lines = append(lines, "*** REFUNDED ***")
	}
	lines = append(lines, ruleHeavy, settings.Footer, "")

	out := append([]byte{}, escInit...)
	for _, line := range lines {
		out = append(out, line...)
		out = append(out, '\n')
	}
	out = append(out, escCut...)
	if sale.PaymentMethod == domain.PaymentCash {
		out = append(out, escDrawerPin...)
	}
	return Receipt{Lines: lines, Bytes: out}
}

// DrawerKick is the pulse on pin 2 that opens a cash drawer wired to the printer.
func DrawerKick() []byte {
	return append([]byte{}, escDrawerPin...)
}

func newFormatter(code string) func(decimal.Decimal) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	p := message.NewPrinter(language.English)
	return func(v decimal.Decimal) string {
		return p.Sprint(currency.Symbol(unit.Amount(v.InexactFloat64())))
	}
}

func displayName(p domain.Profile) string {
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return p.Username
}
