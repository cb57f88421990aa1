package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentCredit = "credit"

	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
)

func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentCredit:
		return true
	}
	return false
}

type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Barcode     string           `json:"barcode,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Category    string           `json:"category,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Description  string           `json:"description" validate:"max=2000"`
	Barcode      string           `json:"barcode" validate:"max=64"`
	Price        decimal.Decimal  `json:"price" validate:"gte=0"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Category     string           `json:"category" validate:"max=100"`
	ImageURL     string           `json:"image_url" validate:"omitempty,url"`
	IsActive     *bool            `json:"is_active,omitempty"`
	InitialStock int              `json:"initial_stock" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Barcode     *string          `json:"barcode,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Category    *string          `json:"category,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type InventoryRecord struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	Quantity        int        `json:"quantity"`
	MinQuantity     int        `json:"min_quantity"`
	LastRestockedAt *time.Time `json:"last_restocked_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Product         *Product   `json:"product,omitempty"`
}

func (r InventoryRecord) IsLowStock() bool {
	return r.Quantity <= r.MinQuantity
}

type InventoryUpsertRequest struct {
	Quantity    int `json:"quantity" validate:"gte=0"`
	MinQuantity int `json:"min_quantity" validate:"gte=0"`
}

type InventoryRestockRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	LoyaltyPoints  int             `json:"loyalty_points"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=32"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type LoyaltyAdjustRequest struct {
	Points int `json:"points"`
}

type Sale struct {
	ID             string          `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	CustomerID     string          `json:"customer_id,omitempty"`
	CashierID      string          `json:"cashier_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []SaleItem      `json:"items,omitempty"`
	Customer       *Customer       `json:"customer,omitempty"`
	Cashier        *Profile        `json:"cashier,omitempty"`
}

type SaleItem struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CheckoutLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CheckoutRequest struct {
	Items          []CheckoutLine   `json:"items"`
	PaymentMethod  string           `json:"payment_method"`
	Discount       decimal.Decimal  `json:"discount"`
	AmountReceived *decimal.Decimal `json:"amount_received,omitempty"`
	CustomerID     string           `json:"customer_id,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

type CheckoutResponse struct {
	Sale           Sale   `json:"sale"`
	LoyaltyEarned  int    `json:"loyalty_earned"`
	ReceiptPrinted bool   `json:"receipt_printed"`
	ReceiptWarning string `json:"receipt_warning,omitempty"`
}

type SaleFilter struct {
	Limit int
	From  *time.Time
	To    *time.Time
}

type ReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type Expense struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	RecordedBy  string          `json:"recorded_by,omitempty"`
	ExpenseDate time.Time       `json:"expense_date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ExpenseCreateRequest struct {
	Category    string          `json:"category" validate:"required,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"max=2000"`
	ExpenseDate string          `json:"expense_date"`
}

type ExpenseUpdateRequest struct {
	Category    *string          `json:"category,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty"`
	ExpenseDate *string          `json:"expense_date,omitempty"`
}

const (
	SettingStoreName     = "store_name"
	SettingCurrency      = "currency"
	SettingTaxRate       = "tax_rate"
	SettingReceiptFooter = "receipt_footer"
)

type Setting struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SettingUpsertRequest struct {
	Value string `json:"value" validate:"max=1000"`
}

type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProfileCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64,excludesall= \t\r\n"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"max=200"`
	Phone    string `json:"phone" validate:"max=32"`
	Role     string `json:"role" validate:"required,oneof=admin manager cashier"`
}

type ProfileUpdateRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type RoleUpdateRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager cashier"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	Role        string  `json:"role"`
	ExpiresAt   string  `json:"expires_at"`
	Profile     Profile `json:"profile"`
}

type Actor struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	TokenID  string    `json:"-"`
	Expires  time.Time `json:"-"`
}

type PaymentBreakdown struct {
	PaymentMethod string          `json:"payment_method"`
	Transactions  int             `json:"transactions"`
	Total         decimal.Decimal `json:"total"`
}

type DailyRevenue struct {
	Date         string          `json:"date"`
	Transactions int             `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	From               string                     `json:"from"`
	To                 string                     `json:"to"`
	Revenue            decimal.Decimal            `json:"revenue"`
	Expenses           decimal.Decimal            `json:"expenses"`
	Profit             decimal.Decimal            `json:"profit"`
	Discounts          decimal.Decimal            `json:"discounts"`
	Transactions       int                        `json:"transactions"`
	RefundedSales      int                        `json:"refunded_sales"`
	AverageSale        decimal.Decimal            `json:"average_sale"`
	Daily              []DailyRevenue             `json:"daily"`
	ByPayment          []PaymentBreakdown         `json:"by_payment"`
	ExpensesByCategory map[string]decimal.Decimal `json:"expenses_by_category"`
}
