package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buffetpos/internal/cache"
	"buffetpos/internal/domain"
	"buffetpos/internal/metrics"
	"buffetpos/internal/receipt"
	"buffetpos/internal/store"
	"buffetpos/internal/xid"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmptyCart           = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInsufficientPayment = fmt.Errorf("%w: amount received is less than the total", ErrValidation)
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoPrinter           = errors.New("no receipt printer configured")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	searchLimit       = 20
	defaultSalesLimit = 100
	defaultMinStock   = 10
	pointsPerCurrency = 10
	moneyPlaces       = 2
)

// InvoiceSource hands out invoice numbers. *xid.InvoiceGenerator is the
// production source.
type InvoiceSource interface {
	Next(at time.Time) string
}

type Options struct {
	Cache    cache.ProductCache
	CacheTTL time.Duration
	// Printer is optional; without one checkouts skip printing.
	Printer  receipt.Printer
	Metrics  metrics.Recorder
	Logger   zerolog.Logger
	Invoices InvoiceSource
	Now      func() time.Time
}

type Service struct {
	repo      store.Repository
	cache     cache.ProductCache
	cacheTTL  time.Duration
	printer   receipt.Printer
	metrics   metrics.Recorder
	log       zerolog.Logger
	invoices  InvoiceSource
	now       func() time.Time
	validator *validator.Validate
}

func New(repo store.Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		printer:   opts.Printer,
		metrics:   opts.Metrics,
		log:       opts.Logger.With().Str("component", "service").Logger(),
		invoices:  opts.Invoices,
		now:       opts.Now,
		validator: newValidator(),
	}
	if s.cache == nil {
		s.cache = cache.NoopProductCache{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop{}
	}
	if s.invoices == nil {
		s.invoices = xid.NewInvoiceGenerator()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// Decimals are compared as numbers by the gte/gt tags.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// checkMoney rejects amounts finer than a cent.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(moneyPlaces)) {
		return validationError("%s must have at most %d decimal places", field, moneyPlaces)
	}
	return nil
}

func (s *Service) validate(req any) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return validationError("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return validationError("%s must satisfy %s", fe.Field(), fe.Tag())
	}
	return validationError("%v", err)
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool, query string) ([]domain.Product, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.repo.SearchProducts(ctx, q, searchLimit)
	}
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, strings.TrimSpace(id))
}

// GetProductByBarcode serves scanner lookups, reading through the product cache.
func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, validationError("barcode is required")
	}

	if cached, ok, err := s.cache.GetProduct(ctx, barcode); err != nil {
		s.log.Warn().Err(err).Str("barcode", barcode).Msg("product cache read failed")
	} else if ok {
		return cached, nil
	}

	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, barcode, product, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("barcode", barcode).Msg("product cache write failed")
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		return nil, validationError("cost must not be negative")
	}
	if err := checkMoney("price", req.Price); err != nil {
		return nil, err
	}
	if req.Cost != nil {
		if err := checkMoney("cost", *req.Cost); err != nil {
			return nil, err
		}
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	product := domain.Product{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Barcode:     req.Barcode,
		Price:       req.Price,
		Cost:        req.Cost,
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		IsActive:    active,
	}

	var created *domain.Product
	err := s.repo.WithinTx(ctx, func(tx store.Repository) error {
		var err error
		created, err = tx.CreateProduct(ctx, product)
		if err != nil {
			return err
		}
		if req.InitialStock > 0 {
			_, err = tx.UpsertInventory(ctx, domain.InventoryRecord{
				ProductID:   created.ID,
				Quantity:    req.InitialStock,
				MinQuantity: defaultMinStock,
			})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("product_id", created.ID).Str("name", created.Name).Int("initial_stock", req.InitialStock).Msg("product created")
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	oldBarcode := existing.Barcode
	next := *existing

	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
		if next.Name == "" {
			return nil, validationError("name is required")
		}
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.Barcode != nil {
		next.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, validationError("price must not be negative")
		}
		if err := checkMoney("price", *req.Price); err != nil {
			return nil, err
		}
		next.Price = *req.Price
	}
	if req.Cost != nil {
		if req.Cost.IsNegative() {
			return nil, validationError("cost must not be negative")
		}
		if err := checkMoney("cost", *req.Cost); err != nil {
			return nil, err
		}
		next.Cost = req.Cost
	}
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.ImageURL != nil {
		next.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}

	updated, err := s.repo.UpdateProduct(ctx, next)
	if err != nil {
		return nil, err
	}
	s.invalidateBarcodes(ctx, oldBarcode, updated.Barcode)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, existing.ID); err != nil {
		return err
	}
	s.invalidateBarcodes(ctx, existing.Barcode)
	s.log.Info().Str("product_id", existing.ID).Msg("product deleted")
	return nil
}

func (s *Service) invalidateBarcodes(ctx context.Context, barcodes ...string) {
	seen := make(map[string]bool, len(barcodes))
	for _, code := range barcodes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if err := s.cache.InvalidateProduct(ctx, code); err != nil {
			s.log.Warn().Err(err).Str("barcode", code).Msg("product cache invalidation failed")
		}
	}
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	return s.repo.ListInventory(ctx)
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) GetInventory(ctx context.Context, productID string) (*domain.InventoryRecord, error) {
	return s.repo.GetInventoryByProduct(ctx, strings.TrimSpace(productID))
}

func (s *Service) UpsertInventory(ctx context.Context, productID string, req domain.InventoryUpsertRequest) (*domain.InventoryRecord, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return nil, err
	}
	return s.repo.UpsertInventory(ctx, domain.InventoryRecord{
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
	})
}

// RestockInventory overwrites the counted quantity and stamps the restock time.
func (s *Service) RestockInventory(ctx context.Context, productID string, req domain.InventoryRestockRequest) (*domain.InventoryRecord, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	record, err := s.repo.SetInventoryQuantity(ctx, strings.TrimSpace(productID), req.Quantity, s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("product_id", record.ProductID).Int("quantity", record.Quantity).Msg("inventory restocked")
	return record, nil
}

func (s *Service) ListCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	if q := strings.TrimSpace(query); q != "" {
		return s.repo.SearchCustomers(ctx, q, searchLimit)
	}
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.repo.CreateCustomer(ctx, domain.Customer{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		TotalPurchases: decimal.Zero,
	})
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	next := *existing
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		next.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		next.Phone = strings.TrimSpace(*req.Phone)
	}
	check := domain.CustomerCreateRequest{Name: next.Name, Email: next.Email, Phone: next.Phone}
	if err := s.validate(check); err != nil {
		return nil, err
	}
	return s.repo.UpdateCustomer(ctx, next)
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.repo.DeleteCustomer(ctx, strings.TrimSpace(id))
}

// AdjustLoyalty adds a signed number of points. Balances may go negative.
func (s *Service) AdjustLoyalty(ctx context.Context, id string, req domain.LoyaltyAdjustRequest) (*domain.Customer, error) {
	if req.Points == 0 {
		return nil, validationError("points must not be zero")
	}
	customer, err := s.repo.AddLoyaltyPoints(ctx, strings.TrimSpace(id), req.Points)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("customer_id", customer.ID).Int("points", req.Points).Msg("loyalty adjusted")
	return customer, nil
}

func (s *Service) ListExpenses(ctx context.Context, from, to *time.Time) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, from, to)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := checkMoney("amount", req.Amount); err != nil {
		return nil, err
	}
	date, err := s.parseExpenseDate(req.ExpenseDate)
	if err != nil {
		return nil, err
	}

	expense := domain.Expense{
		Category:    req.Category,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		ExpenseDate: date,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		expense.RecordedBy = actor.ID
	}
	return s.repo.CreateExpense(ctx, expense)
}

func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.ExpenseUpdateRequest) (*domain.Expense, error) {
	existing, err := s.repo.GetExpense(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	next := *existing
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
		if next.Category == "" {
			return nil, validationError("category is required")
		}
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, validationError("amount must be greater than zero")
		}
		if err := checkMoney("amount", *req.Amount); err != nil {
			return nil, err
		}
		next.Amount = *req.Amount
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.ExpenseDate != nil {
		date, err := s.parseExpenseDate(*req.ExpenseDate)
		if err != nil {
			return nil, err
		}
		next.ExpenseDate = date
	}
	return s.repo.UpdateExpense(ctx, next)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.repo.DeleteExpense(ctx, strings.TrimSpace(id))
}

func (s *Service) parseExpenseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, validationError("expense_date must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}

// ParseDate accepts a calendar date or a full RFC3339 timestamp and returns UTC.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
