package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"buffetpos/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrAlreadyRefunded = errors.New("sale already refunded")
)

type ProductRepository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	SearchProducts(ctx context.Context, term string, limit int) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type InventoryRepository interface {
	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)
	ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error)
	GetInventoryByProduct(ctx context.Context, productID string) (*domain.InventoryRecord, error)
	UpsertInventory(ctx context.Context, record domain.InventoryRecord) (*domain.InventoryRecord, error)
	SetInventoryQuantity(ctx context.Context, productID string, quantity int, at time.Time) (*domain.InventoryRecord, error)
	// DecrementInventory subtracts amount atomically, flooring at zero. It
	// returns ErrNotFound when the product has no inventory row.
	DecrementInventory(ctx context.Context, productID string, amount int) error
	IncrementInventory(ctx context.Context, productID string, amount int) error
}

type CustomerRepository interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	AddLoyaltyPoints(ctx context.Context, id string, points int) (*domain.Customer, error)
	RecordCustomerPurchase(ctx context.Context, id string, amount decimal.Decimal, points int) error
	// ReverseCustomerPurchase lowers total_purchases by amount, floored at zero.
	ReverseCustomerPurchase(ctx context.Context, id string, amount decimal.Decimal) error
}

type SaleRepository interface {
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	CreateSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error)
	// MarkSaleRefunded flips a completed sale to refunded. Any other current
	// status yields ErrAlreadyRefunded.
	MarkSaleRefunded(ctx context.Context, id string) (*domain.Sale, error)
}

type ExpenseRepository interface {
	ListExpenses(ctx context.Context, from *time.Time, to *time.Time) ([]domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

type SettingRepository interface {
	ListSettings(ctx context.Context) ([]domain.Setting, error)
	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
	UpsertSetting(ctx context.Context, key string, value string) (*domain.Setting, error)
}

type ProfileRepository interface {
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	UpdateProfileRole(ctx context.Context, id string, role string) (*domain.Profile, error)
}

type Repository interface {
	ProductRepository
	InventoryRepository
	CustomerRepository
	SaleRepository
	ExpenseRepository
	SettingRepository
	ProfileRepository

	// WithinTx runs fn against a repository bound to one transaction. fn's
	// error rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error
}
