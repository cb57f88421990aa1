package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
	"buffetpos/internal/xid"
)

type dataset struct {
	products  map[string]domain.Product
	inventory map[string]domain.InventoryRecord
	customers map[string]domain.Customer
	sales     map[string]domain.Sale
	saleItems map[string][]domain.SaleItem
	expenses  map[string]domain.Expense
	settings  map[string]domain.Setting
	profiles  map[string]domain.Profile
}

func newDataset() *dataset {
	return &dataset{
		products:  make(map[string]domain.Product),
		inventory: make(map[string]domain.InventoryRecord),
		customers: make(map[string]domain.Customer),
		sales:     make(map[string]domain.Sale),
		saleItems: make(map[string][]domain.SaleItem),
		expenses:  make(map[string]domain.Expense),
		settings:  make(map[string]domain.Setting),
		profiles:  make(map[string]domain.Profile),
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		products:  cloneMap(d.products),
		inventory: cloneMap(d.inventory),
		customers: cloneMap(d.customers),
		sales:     cloneMap(d.sales),
		saleItems: make(map[string][]domain.SaleItem, len(d.saleItems)),
		expenses:  cloneMap(d.expenses),
		settings:  cloneMap(d.settings),
		profiles:  cloneMap(d.profiles),
	}
	for id, items := range d.saleItems {
		out.saleItems[id] = slices.Clone(items)
	}
	return out
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store keeps everything in process memory. A transaction works on a copy of
// the dataset under the write lock and swaps it in on success.
type Store struct {
	mu   *sync.RWMutex
	data *dataset
	inTx bool
}

func New() *Store {
	return &Store{mu: &sync.RWMutex{}, data: newDataset()}
}

// SeedCredentials are the passwords of the demo staff accounts. Empty fields
// fall back to the development defaults.
type SeedCredentials struct {
	AdminPassword   string
	ManagerPassword string
	CashierPassword string
}

// NewSeeded returns a store with demo staff, a small buffet menu and default
// settings.
func NewSeeded(creds SeedCredentials) *Store {
	s := New()
	now := time.Now().UTC()

	staff := []struct {
		username string
		password string
		fallback string
		fullName string
		role     string
	}{
		{"admin", creds.AdminPassword, "admin123", "Store Admin", domain.RoleAdmin},
		{"manager", creds.ManagerPassword, "manager123", "Floor Manager", domain.RoleManager},
		{"cashier", creds.CashierPassword, "cashier123", "Front Cashier", domain.RoleCashier},
	}
	for _, u := range staff {
		if u.password == "" {
			u.password = u.fallback
			log.Warn().Str("component", "memory-store").Str("username", u.username).Msg("using default dev credentials")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("hash seed password")
		}
		id := xid.New()
		s.data.profiles[id] = domain.Profile{
			ID:           id,
			Username:     u.username,
			FullName:     u.fullName,
			Role:         u.role,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	menu := []struct {
		name     string
		barcode  string
		category string
		price    string
		cost     string
		stock    int
	}{
		{"Adult Buffet", "1000000000011", "Buffet", "24.90", "11.00", 200},
		{"Child Buffet", "1000000000028", "Buffet", "12.50", "5.50", 200},
		{"Iced Tea", "1000000000035", "Drinks", "3.00", "0.60", 80},
		{"Fresh Orange Juice", "1000000000042", "Drinks", "4.50", "1.40", 40},
		{"Mango Pudding", "1000000000059", "Dessert", "5.00", "1.80", 25},
		{"Extra Sashimi Platter", "1000000000066", "Add-on", "15.00", "7.20", 8},
	}
	for _, item := range menu {
		id := xid.New()
		cost := decimal.RequireFromString(item.cost)
		s.data.products[id] = domain.Product{
			ID:        id,
			Name:      item.name,
			Barcode:   item.barcode,
			Category:  item.category,
			Price:     decimal.RequireFromString(item.price),
			Cost:      &cost,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		restocked := now
		s.data.inventory[id] = domain.InventoryRecord{
			ID:              xid.New(),
			ProductID:       id,
			Quantity:        item.stock,
			MinQuantity:     10,
			LastRestockedAt: &restocked,
			UpdatedAt:       now,
		}
	}

	customerID := xid.New()
	s.data.customers[customerID] = domain.Customer{
		ID:             customerID,
		Name:           "Walk-in Regular",
		Phone:          "555-0100",
		TotalPurchases: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for key, value := range map[string]string{
		domain.SettingStoreName:     "Buffet POS",
		domain.SettingCurrency:      "USD",
		domain.SettingTaxRate:       "0",
		domain.SettingReceiptFooter: "Thank you for dining with us!",
	} {
		s.data.settings[key] = domain.Setting{ID: xid.New(), Key: key, Value: value, UpdatedAt: now}
	}

	return s
}

func (s *Store) read(fn func(d *dataset) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(fn func(d *dataset) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(&Store{mu: s.mu, data: snapshot, inTx: true}); err != nil {
		return err
	}
	*s.data = *snapshot
	return nil
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	var out []domain.Product
	err := s.read(func(d *dataset) error {
		out = make([]domain.Product, 0, len(d.products))
		for _, p := range d.products {
			if activeOnly && !p.IsActive {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sortProducts(out)
	return out, err
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	var out domain.Product
	err := s.read(func(d *dataset) error {
		p, ok := d.products[id]
		if !ok {
			return store.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	var out *domain.Product
	err := s.read(func(d *dataset) error {
		for _, p := range d.products {
			if p.Barcode != "" && p.Barcode == barcode {
				found := p
				out = &found
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) SearchProducts(_ context.Context, term string, limit int) ([]domain.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	var out []domain.Product
	err := s.read(func(d *dataset) error {
		for _, p := range d.products {
			if !p.IsActive {
				continue
			}
			if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Barcode), needle) {
				out = append(out, p)
			}
		}
		return nil
	})
	sortProducts(out)
	return truncate(out, limit), err
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = xid.New()
	}
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.write(func(d *dataset) error {
		if _, exists := d.products[product.ID]; exists {
			return store.ErrConflict
		}
		if barcodeTaken(d, product.Barcode, product.ID) {
			return store.ErrConflict
		}
		d.products[product.ID] = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	err := s.write(func(d *dataset) error {
		existing, ok := d.products[product.ID]
		if !ok {
			return store.ErrNotFound
		}
		if barcodeTaken(d, product.Barcode, product.ID) {
			return store.ErrConflict
		}
		product.CreatedAt = existing.CreatedAt
		product.UpdatedAt = time.Now().UTC()
		d.products[product.ID] = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.products[id]; !ok {
			return store.ErrNotFound
		}
		delete(d.products, id)
		delete(d.inventory, id)
		for saleID, items := range d.saleItems {
			for i := range items {
				if items[i].ProductID == id {
					items[i].ProductID = ""
				}
			}
			d.saleItems[saleID] = items
		}
		return nil
	})
}

func barcodeTaken(d *dataset, barcode string, ownerID string) bool {
	if barcode == "" {
		return false
	}
	for _, p := range d.products {
		if p.ID != ownerID && p.Barcode == barcode {
			return true
		}
	}
	return false
}

func (s *Store) ListInventory(_ context.Context) ([]domain.InventoryRecord, error) {
	return s.listInventory(func(domain.InventoryRecord) bool { return true })
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.InventoryRecord, error) {
	return s.listInventory(domain.InventoryRecord.IsLowStock)
}

func (s *Store) listInventory(keep func(domain.InventoryRecord) bool) ([]domain.InventoryRecord, error) {
	var out []domain.InventoryRecord
	err := s.read(func(d *dataset) error {
		out = make([]domain.InventoryRecord, 0, len(d.inventory))
		for productID, rec := range d.inventory {
			if !keep(rec) {
				continue
			}
			if p, ok := d.products[productID]; ok {
				product := p
				rec.Product = &product
			}
			out = append(out, rec)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity < out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, err
}

func (s *Store) GetInventoryByProduct(_ context.Context, productID string) (*domain.InventoryRecord, error) {
	var out domain.InventoryRecord
	err := s.read(func(d *dataset) error {
		rec, ok := d.inventory[productID]
		if !ok {
			return store.ErrNotFound
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpsertInventory(_ context.Context, record domain.InventoryRecord) (*domain.InventoryRecord, error) {
	err := s.write(func(d *dataset) error {
		if _, ok := d.products[record.ProductID]; !ok {
			return store.ErrNotFound
		}
		if existing, ok := d.inventory[record.ProductID]; ok {
			record.ID = existing.ID
			if record.LastRestockedAt == nil {
				record.LastRestockedAt = existing.LastRestockedAt
			}
		} else if record.ID == "" {
			record.ID = xid.New()
		}
		record.Product = nil
		record.UpdatedAt = time.Now().UTC()
		d.inventory[record.ProductID] = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) SetInventoryQuantity(_ context.Context, productID string, quantity int, at time.Time) (*domain.InventoryRecord, error) {
	var out domain.InventoryRecord
	err := s.write(func(d *dataset) error {
		rec, ok := d.inventory[productID]
		if !ok {
			return store.ErrNotFound
		}
		restocked := at.UTC()
		rec.Quantity = quantity
		rec.LastRestockedAt = &restocked
		rec.UpdatedAt = time.Now().UTC()
		d.inventory[productID] = rec
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DecrementInventory(_ context.Context, productID string, amount int) error {
	return s.adjustInventory(productID, -amount)
}

func (s *Store) IncrementInventory(_ context.Context, productID string, amount int) error {
	return s.adjustInventory(productID, amount)
}

func (s *Store) adjustInventory(productID string, delta int) error {
	return s.write(func(d *dataset) error {
		rec, ok := d.inventory[productID]
		if !ok {
			return store.ErrNotFound
		}
		rec.Quantity = max(0, rec.Quantity+delta)
		rec.UpdatedAt = time.Now().UTC()
		d.inventory[productID] = rec
		return nil
	})
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := s.read(func(d *dataset) error {
		out = make([]domain.Customer, 0, len(d.customers))
		for _, c := range d.customers {
			out = append(out, c)
		}
		return nil
	})
	sortCustomers(out)
	return out, err
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	var out domain.Customer
	err := s.read(func(d *dataset) error {
		c, ok := d.customers[id]
		if !ok {
			return store.ErrNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SearchCustomers(_ context.Context, term string, limit int) ([]domain.Customer, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	var out []domain.Customer
	err := s.read(func(d *dataset) error {
		for _, c := range d.customers {
			if strings.Contains(strings.ToLower(c.Name), needle) ||
				strings.Contains(strings.ToLower(c.Phone), needle) ||
				strings.Contains(strings.ToLower(c.Email), needle) {
				out = append(out, c)
			}
		}
		return nil
	})
	sortCustomers(out)
	return truncate(out, limit), err
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	now := time.Now().UTC()
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	customer.CreatedAt = now
	customer.UpdatedAt = now
	err := s.write(func(d *dataset) error {
		if _, exists := d.customers[customer.ID]; exists {
			return store.ErrConflict
		}
		d.customers[customer.ID] = customer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	var out domain.Customer
	err := s.write(func(d *dataset) error {
		existing, ok := d.customers[customer.ID]
		if !ok {
			return store.ErrNotFound
		}
		existing.Name = customer.Name
		existing.Email = customer.Email
		existing.Phone = customer.Phone
		existing.UpdatedAt = time.Now().UTC()
		d.customers[customer.ID] = existing
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.customers[id]; !ok {
			return store.ErrNotFound
		}
		delete(d.customers, id)
		for saleID, sale := range d.sales {
			if sale.CustomerID == id {
				sale.CustomerID = ""
				d.sales[saleID] = sale
			}
		}
		return nil
	})
}

func (s *Store) AddLoyaltyPoints(_ context.Context, id string, points int) (*domain.Customer, error) {
	var out domain.Customer
	err := s.write(func(d *dataset) error {
		c, ok := d.customers[id]
		if !ok {
			return store.ErrNotFound
		}
		c.LoyaltyPoints += points
		c.UpdatedAt = time.Now().UTC()
		d.customers[id] = c
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) RecordCustomerPurchase(_ context.Context, id string, amount decimal.Decimal, points int) error {
	return s.write(func(d *dataset) error {
		c, ok := d.customers[id]
		if !ok {
			return store.ErrNotFound
		}
		c.TotalPurchases = c.TotalPurchases.Add(amount)
		c.LoyaltyPoints += points
		c.UpdatedAt = time.Now().UTC()
		d.customers[id] = c
		return nil
	})
}

func (s *Store) ReverseCustomerPurchase(_ context.Context, id string, amount decimal.Decimal) error {
	return s.write(func(d *dataset) error {
		c, ok := d.customers[id]
		if !ok {
			return store.ErrNotFound
		}
		c.TotalPurchases = decimal.Max(decimal.Zero, c.TotalPurchases.Sub(amount))
		c.UpdatedAt = time.Now().UTC()
		d.customers[id] = c
		return nil
	})
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	var out []domain.Sale
	err := s.read(func(d *dataset) error {
		for _, sale := range d.sales {
			if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && sale.CreatedAt.After(*filter.To) {
				continue
			}
			out = append(out, sale)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, filter.Limit), err
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	var out domain.Sale
	err := s.read(func(d *dataset) error {
		sale, ok := d.sales[id]
		if !ok {
			return store.ErrNotFound
		}
		sale.Items = slices.Clone(d.saleItems[id])
		if c, ok := d.customers[sale.CustomerID]; ok {
			customer := c
			sale.Customer = &customer
		}
		if p, ok := d.profiles[sale.CashierID]; ok {
			cashier := p
			cashier.PasswordHash = ""
			sale.Cashier = &cashier
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Items = nil
	sale.Customer = nil
	sale.Cashier = nil

	err := s.write(func(d *dataset) error {
		for _, existing := range d.sales {
			if existing.InvoiceNumber == sale.InvoiceNumber {
				return store.ErrConflict
			}
		}
		d.sales[sale.ID] = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CreateSaleItems(_ context.Context, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error) {
	out := make([]domain.SaleItem, 0, len(items))
	err := s.write(func(d *dataset) error {
		if _, ok := d.sales[saleID]; !ok {
			return store.ErrNotFound
		}
		now := time.Now().UTC()
		for _, item := range items {
			if item.ID == "" {
				item.ID = xid.New()
			}
			item.SaleID = saleID
			item.CreatedAt = now
			out = append(out, item)
		}
		d.saleItems[saleID] = append(d.saleItems[saleID], out...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) MarkSaleRefunded(_ context.Context, id string) (*domain.Sale, error) {
	var out domain.Sale
	err := s.write(func(d *dataset) error {
		sale, ok := d.sales[id]
		if !ok {
			return store.ErrNotFound
		}
		if sale.Status != domain.SaleStatusCompleted {
			return store.ErrAlreadyRefunded
		}
		sale.Status = domain.SaleStatusRefunded
		d.sales[id] = sale
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListExpenses(_ context.Context, from *time.Time, to *time.Time) ([]domain.Expense, error) {
	var out []domain.Expense
	err := s.read(func(d *dataset) error {
		for _, e := range d.expenses {
			if from != nil && e.ExpenseDate.Before(*from) {
				continue
			}
			if to != nil && e.ExpenseDate.After(*to) {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	var out domain.Expense
	err := s.read(func(d *dataset) error {
		e, ok := d.expenses[id]
		if !ok {
			return store.ErrNotFound
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	now := time.Now().UTC()
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	expense.CreatedAt = now
	expense.UpdatedAt = now
	err := s.write(func(d *dataset) error {
		d.expenses[expense.ID] = expense
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	err := s.write(func(d *dataset) error {
		existing, ok := d.expenses[expense.ID]
		if !ok {
			return store.ErrNotFound
		}
		expense.RecordedBy = existing.RecordedBy
		expense.CreatedAt = existing.CreatedAt
		expense.UpdatedAt = time.Now().UTC()
		d.expenses[expense.ID] = expense
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.expenses[id]; !ok {
			return store.ErrNotFound
		}
		delete(d.expenses, id)
		return nil
	})
}

func (s *Store) ListSettings(_ context.Context) ([]domain.Setting, error) {
	var out []domain.Setting
	err := s.read(func(d *dataset) error {
		out = make([]domain.Setting, 0, len(d.settings))
		for _, setting := range d.settings {
			out = append(out, setting)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, err
}

func (s *Store) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	var out domain.Setting
	err := s.read(func(d *dataset) error {
		setting, ok := d.settings[key]
		if !ok {
			return store.ErrNotFound
		}
		out = setting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpsertSetting(_ context.Context, key string, value string) (*domain.Setting, error) {
	var out domain.Setting
	err := s.write(func(d *dataset) error {
		setting, ok := d.settings[key]
		if !ok {
			setting = domain.Setting{ID: xid.New(), Key: key}
		}
		setting.Value = value
		setting.UpdatedAt = time.Now().UTC()
		d.settings[key] = setting
		out = setting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	var out []domain.Profile
	err := s.read(func(d *dataset) error {
		out = make([]domain.Profile, 0, len(d.profiles))
		for _, p := range d.profiles {
			out = append(out, p)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})
	return out, err
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	var out domain.Profile
	err := s.read(func(d *dataset) error {
		p, ok := d.profiles[id]
		if !ok {
			return store.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetProfileByUsername(_ context.Context, username string) (*domain.Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var out *domain.Profile
	err := s.read(func(d *dataset) error {
		for _, p := range d.profiles {
			if strings.ToLower(p.Username) == username {
				found := p
				out = &found
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *Store) CreateProfile(_ context.Context, profile domain.Profile) (*domain.Profile, error) {
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = xid.New()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now
	err := s.write(func(d *dataset) error {
		for _, existing := range d.profiles {
			if strings.EqualFold(existing.Username, profile.Username) {
				return store.ErrConflict
			}
		}
		d.profiles[profile.ID] = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) UpdateProfile(_ context.Context, profile domain.Profile) (*domain.Profile, error) {
	var out domain.Profile
	err := s.write(func(d *dataset) error {
		existing, ok := d.profiles[profile.ID]
		if !ok {
			return store.ErrNotFound
		}
		existing.FullName = profile.FullName
		existing.Phone = profile.Phone
		if profile.PasswordHash != "" {
			existing.PasswordHash = profile.PasswordHash
		}
		existing.UpdatedAt = time.Now().UTC()
		d.profiles[profile.ID] = existing
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateProfileRole(_ context.Context, id string, role string) (*domain.Profile, error) {
	var out domain.Profile
	err := s.write(func(d *dataset) error {
		existing, ok := d.profiles[id]
		if !ok {
			return store.ErrNotFound
		}
		existing.Role = role
		existing.UpdatedAt = time.Now().UTC()
		d.profiles[id] = existing
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func sortProducts(products []domain.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}

func sortCustomers(customers []domain.Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		if customers[i].Name != customers[j].Name {
			return customers[i].Name < customers[j].Name
		}
		return customers[i].ID < customers[j].ID
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
