package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"buffetpos/internal/domain"
	"buffetpos/internal/store"
	"buffetpos/internal/xid"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db *sql.DB
	q  querier
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db := stdlib.OpenDB(*connConfig, stdlib.OptionAfterConnect(func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}))

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const productColumns = `id, name, COALESCE(description, ''), COALESCE(barcode, ''), price, cost,
	COALESCE(category, ''), COALESCE(image_url, ''), is_active, created_at, updated_at`

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	var cost decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Barcode, &p.Price, &cost,
		&p.Category, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if cost.Valid {
		c := cost.Decimal
		p.Cost = &c
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = false OR is_active = true)
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) SearchProducts(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active = true AND (name ILIKE $1 OR barcode ILIKE $1)
		ORDER BY name
		LIMIT $2
	`, likePattern(term), limit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()
	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New()
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, barcode, price, cost, category, image_url, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		RETURNING created_at, updated_at
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.Barcode), product.Price,
		nullDecimal(product.Cost), nullIfEmpty(product.Category), nullIfEmpty(product.ImageURL), product.IsActive,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if !validID(product.ID) {
		return nil, store.ErrNotFound
	}
	err := s.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, barcode = $4, price = $5, cost = $6,
			category = $7, image_url = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.Barcode), product.Price,
		nullDecimal(product.Cost), nullIfEmpty(product.Category), nullIfEmpty(product.ImageURL), product.IsActive,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const inventoryColumns = `id, product_id, quantity, min_quantity, last_restocked_at, updated_at`

func scanInventory(row scanner, extra ...any) (*domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	var restocked sql.NullTime
	dest := append([]any{&rec.ID, &rec.ProductID, &rec.Quantity, &rec.MinQuantity, &restocked, &rec.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if restocked.Valid {
		t := restocked.Time
		rec.LastRestockedAt = &t
	}
	return &rec, nil
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	return s.listInventory(ctx, false)
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.InventoryRecord, error) {
	return s.listInventory(ctx, true)
}

func (s *Store) listInventory(ctx context.Context, lowOnly bool) ([]domain.InventoryRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT i.id, i.product_id, i.quantity, i.min_quantity, i.last_restocked_at, i.updated_at,
			p.name, COALESCE(p.barcode, ''), p.price, COALESCE(p.category, ''), p.is_active
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE ($1 = false OR i.quantity <= i.min_quantity)
		ORDER BY i.quantity, p.name
	`, lowOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0, 64)
	for rows.Next() {
		var p domain.Product
		rec, err := scanInventory(rows, &p.Name, &p.Barcode, &p.Price, &p.Category, &p.IsActive)
		if err != nil {
			return nil, err
		}
		p.ID = rec.ProductID
		rec.Product = &p
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetInventoryByProduct(ctx context.Context, productID string) (*domain.InventoryRecord, error) {
	if !validID(productID) {
		return nil, store.ErrNotFound
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1`, productID)
	rec, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func (s *Store) UpsertInventory(ctx context.Context, record domain.InventoryRecord) (*domain.InventoryRecord, error) {
	if !validID(record.ProductID) {
		return nil, store.ErrNotFound
	}
	if record.ID == "" {
		record.ID = xid.New()
	}
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO inventory (id, product_id, quantity, min_quantity, last_restocked_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
			min_quantity = EXCLUDED.min_quantity,
			last_restocked_at = COALESCE(EXCLUDED.last_restocked_at, inventory.last_restocked_at),
			updated_at = now()
		RETURNING `+inventoryColumns,
		record.ID, record.ProductID, record.Quantity, record.MinQuantity, nullTime(record.LastRestockedAt))
	rec, err := scanInventory(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) SetInventoryQuantity(ctx context.Context, productID string, quantity int, at time.Time) (*domain.InventoryRecord, error) {
	if !validID(productID) {
		return nil, store.ErrNotFound
	}
	row := s.q.QueryRowContext(ctx, `
		UPDATE inventory
		SET quantity = $2, last_restocked_at = $3, updated_at = now()
		WHERE product_id = $1
		RETURNING `+inventoryColumns, productID, quantity, at.UTC())
	rec, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func (s *Store) DecrementInventory(ctx context.Context, productID string, amount int) error {
	if !validID(productID) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = GREATEST(quantity - $2, 0), updated_at = now()
		WHERE product_id = $1
	`, productID, amount)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) IncrementInventory(ctx context.Context, productID string, amount int) error {
	if !validID(productID) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity + $2, updated_at = now()
		WHERE product_id = $1
	`, productID, amount)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const customerColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), loyalty_points, total_purchases, created_at, updated_at`

func scanCustomer(row scanner) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.LoyaltyPoints, &c.TotalPurchases, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCustomers(rows *sql.Rows) ([]domain.Customer, error) {
	defer rows.Close()
	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	c, err := scanCustomer(s.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1
		ORDER BY name
		LIMIT $2
	`, likePattern(term), limit)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, email, phone, loyalty_points, total_purchases, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING created_at, updated_at
	`, customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone),
		customer.LoyaltyPoints, customer.TotalPurchases,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if !validID(customer.ID) {
		return nil, store.ErrNotFound
	}
	c, err := scanCustomer(s.q.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) AddLoyaltyPoints(ctx context.Context, id string, points int) (*domain.Customer, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	c, err := scanCustomer(s.q.QueryRowContext(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns, id, points))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) RecordCustomerPurchase(ctx context.Context, id string, amount decimal.Decimal, points int) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE customers
		SET total_purchases = total_purchases + $2,
			loyalty_points = loyalty_points + $3,
			updated_at = now()
		WHERE id = $1
	`, id, amount, points)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ReverseCustomerPurchase(ctx context.Context, id string, amount decimal.Decimal) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE customers
		SET total_purchases = GREATEST(total_purchases - $2, 0), updated_at = now()
		WHERE id = $1
	`, id, amount)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

const saleColumns = `id, invoice_number, customer_id, cashier_id, subtotal, discount, tax, total,
	payment_method, amount_received, change_amount, status, COALESCE(notes, ''), created_at`

func scanSale(row scanner) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, cashierID sql.NullString
	if err := row.Scan(&sale.ID, &sale.InvoiceNumber, &customerID, &cashierID, &sale.Subtotal, &sale.Discount,
		&sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.AmountReceived, &sale.ChangeAmount, &sale.Status,
		&sale.Notes, &sale.CreatedAt); err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.CashierID = cashierID.String
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sale, err := scanSale(s.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, subtotal, created_at
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.SaleItem
		var productID sql.NullString
		if err := rows.Scan(&item.ID, &item.SaleID, &productID, &item.ProductName, &item.Quantity,
			&item.UnitPrice, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.ProductID = productID.String
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sale.CustomerID != "" {
		customer, err := s.GetCustomer(ctx, sale.CustomerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		sale.Customer = customer
	}
	if sale.CashierID != "" {
		cashier, err := s.GetProfile(ctx, sale.CashierID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if cashier != nil {
			cashier.PasswordHash = ""
		}
		sale.Cashier = cashier
	}
	return sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	// A reference that cannot be a uuid cannot exist either.
	if (sale.CustomerID != "" && !validID(sale.CustomerID)) || (sale.CashierID != "" && !validID(sale.CashierID)) {
		return nil, store.ErrNotFound
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sales (id, invoice_number, customer_id, cashier_id, subtotal, discount, tax, total,
			payment_method, amount_received, change_amount, status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.CashierID), sale.Subtotal,
		sale.Discount, sale.Tax, sale.Total, sale.PaymentMethod, sale.AmountReceived, sale.ChangeAmount,
		sale.Status, nullIfEmpty(sale.Notes), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.Items = nil
	sale.Customer = nil
	sale.Cashier = nil
	return &sale, nil
}

func (s *Store) CreateSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error) {
	out := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.SaleID = saleID
		if item.ProductID != "" && !validID(item.ProductID) {
			return nil, store.ErrNotFound
		}
		err := s.q.QueryRowContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, subtotal, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			RETURNING created_at
		`, item.ID, item.SaleID, nullIfEmpty(item.ProductID), item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal,
		).Scan(&item.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) MarkSaleRefunded(ctx context.Context, id string) (*domain.Sale, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sale, err := scanSale(s.q.QueryRowContext(ctx, `
		UPDATE sales
		SET status = 'refunded'
		WHERE id = $1 AND status = 'completed'
		RETURNING `+saleColumns, id))
	if err == nil {
		return sale, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, store.ErrAlreadyRefunded
	}
	return nil, store.ErrNotFound
}

const expenseColumns = `id, category, amount, COALESCE(description, ''), recorded_by, expense_date, created_at, updated_at`

func scanExpense(row scanner) (*domain.Expense, error) {
	var e domain.Expense
	var recordedBy sql.NullString
	if err := row.Scan(&e.ID, &e.Category, &e.Amount, &e.Description, &recordedBy, &e.ExpenseDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.RecordedBy = recordedBy.String
	return &e, nil
}

func (s *Store) ListExpenses(ctx context.Context, from *time.Time, to *time.Time) ([]domain.Expense, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE ($1::date IS NULL OR expense_date >= $1)
			AND ($2::date IS NULL OR expense_date <= $2)
		ORDER BY expense_date DESC, created_at DESC
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	e, err := scanExpense(s.q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	e, err := scanExpense(s.q.QueryRowContext(ctx, `
		INSERT INTO expenses (id, category, amount, description, recorded_by, expense_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING `+expenseColumns,
		expense.ID, expense.Category, expense.Amount, nullIfEmpty(expense.Description),
		nullIfEmpty(expense.RecordedBy), expense.ExpenseDate))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if !validID(expense.ID) {
		return nil, store.ErrNotFound
	}
	e, err := scanExpense(s.q.QueryRowContext(ctx, `
		UPDATE expenses
		SET category = $2, amount = $3, description = $4, expense_date = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+expenseColumns,
		expense.ID, expense.Category, expense.Amount, nullIfEmpty(expense.Description), expense.ExpenseDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make([]domain.Setting, 0, 8)
	for rows.Next() {
		var setting domain.Setting
		if err := rows.Scan(&setting.ID, &setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var setting domain.Setting
	err := s.q.QueryRowContext(ctx, `SELECT id, key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&setting.ID, &setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key string, value string) (*domain.Setting, error) {
	var setting domain.Setting
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO settings (id, key, value, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING id, key, value, updated_at
	`, xid.New(), key, value).Scan(&setting.ID, &setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

const profileColumns = `id, username, COALESCE(full_name, ''), COALESCE(phone, ''), role, password_hash, created_at, updated_at`

func scanProfile(row scanner) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Phone, &p.Role, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]domain.Profile, 0, 16)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	p, err := scanProfile(s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	p, err := scanProfile(s.q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(username) = lower($1)`, strings.TrimSpace(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) CreateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	if profile.ID == "" {
		profile.ID = xid.New()
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO profiles (id, username, full_name, phone, role, password_hash, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING created_at, updated_at
	`, profile.ID, profile.Username, nullIfEmpty(profile.FullName), nullIfEmpty(profile.Phone), profile.Role, profile.PasswordHash,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	if !validID(profile.ID) {
		return nil, store.ErrNotFound
	}
	p, err := scanProfile(s.q.QueryRowContext(ctx, `
		UPDATE profiles
		SET full_name = $2, phone = $3, password_hash = COALESCE(NULLIF($4, ''), password_hash), updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		profile.ID, nullIfEmpty(profile.FullName), nullIfEmpty(profile.Phone), profile.PasswordHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) UpdateProfileRole(ctx context.Context, id string, role string) (*domain.Profile, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	p, err := scanProfile(s.q.QueryRowContext(ctx, `
		UPDATE profiles
		SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// validID screens out values that would make postgres reject the uuid cast.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
