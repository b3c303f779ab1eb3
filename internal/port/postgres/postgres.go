package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
)

// Port is the direct-postgres data port used in self-hosted deployments,
// where the client talks to its own database instead of a hosted REST API.
type Port struct {
	db         *sql.DB
	authSecret []byte
	tokenTTL   time.Duration
}

func New(ctx context.Context, databaseURL string, authSecret string, tokenTTL time.Duration) (*Port, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if authSecret == "" {
		authSecret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &Port{db: db, authSecret: []byte(authSecret), tokenTTL: tokenTTL}, nil
}

func (p *Port) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the tables the port needs when they do not exist yet.
// Self-hosted installs run against a single empty database, so there is no
// migration history to manage.
func (p *Port) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			cost_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
			sale_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
			stock       INTEGER NOT NULL DEFAULT 0,
			min_stock   INTEGER NOT NULL DEFAULT 0,
			unit        TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT true,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS customers (
			id             BIGSERIAL PRIMARY KEY,
			name           TEXT NOT NULL,
			contact_number TEXT NOT NULL DEFAULT '',
			email          TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id               BIGSERIAL PRIMARY KEY,
			type             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			amount           DOUBLE PRECISION NOT NULL,
			product_id       BIGINT REFERENCES products(id),
			quantity         INTEGER,
			customer_id      BIGINT REFERENCES customers(id),
			transaction_date TIMESTAMP NOT NULL,
			idempotency_key  TEXT UNIQUE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS fixed_expenses (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount      DOUBLE PRECISION NOT NULL,
			frequency   TEXT NOT NULL,
			active      BOOLEAN NOT NULL DEFAULT true,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS users (
			username      TEXT PRIMARY KEY,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (p *Port) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
		SELECT id, name, description, cost_price, sale_price, stock, min_stock, unit, active
		FROM products
		ORDER BY name
	`
	if activeOnly {
		query = `
			SELECT id, name, description, cost_price, sale_price, stock, min_stock, unit, active
			FROM products
			WHERE active = true
			ORDER BY name
		`
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var prod domain.Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Description, &prod.CostPrice, &prod.SalePrice, &prod.Stock, &prod.MinStock, &prod.Unit, &prod.Active); err != nil {
			return nil, err
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (p *Port) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var prod domain.Product
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, cost_price, sale_price, stock, min_stock, unit, active
		FROM products
		WHERE id = $1
	`, id).Scan(&prod.ID, &prod.Name, &prod.Description, &prod.CostPrice, &prod.SalePrice, &prod.Stock, &prod.MinStock, &prod.Unit, &prod.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}
	return &prod, nil
}

func (p *Port) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := port.ValidateProductCreate(req); err != nil {
		return nil, err
	}

	prod := domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		Unit:        req.Unit,
		Active:      true,
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, cost_price, sale_price, stock, min_stock, unit, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true)
		RETURNING id
	`, prod.Name, prod.Description, prod.CostPrice, prod.SalePrice, prod.Stock, prod.MinStock, prod.Unit).Scan(&prod.ID)
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (p *Port) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var prod domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, description, cost_price, sale_price, stock, min_stock, unit, active
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&prod.ID, &prod.Name, &prod.Description, &prod.CostPrice, &prod.SalePrice, &prod.Stock, &prod.MinStock, &prod.Unit, &prod.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &port.ValidationError{Field: "name", Message: "name is required"}
		}
		prod.Name = name
	}
	if req.Description != nil {
		prod.Description = strings.TrimSpace(*req.Description)
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return nil, &port.ValidationError{Field: "costPrice", Message: "cost price must not be negative"}
		}
		prod.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		if *req.SalePrice < 0 {
			return nil, &port.ValidationError{Field: "salePrice", Message: "sale price must not be negative"}
		}
		prod.SalePrice = *req.SalePrice
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, &port.ValidationError{Field: "stock", Message: "stock must not be negative"}
		}
		prod.Stock = *req.Stock
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, &port.ValidationError{Field: "minStock", Message: "minimum stock must not be negative"}
		}
		prod.MinStock = *req.MinStock
	}
	if req.Unit != nil {
		prod.Unit = *req.Unit
	}
	if req.Active != nil {
		prod.Active = *req.Active
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, cost_price = $4, sale_price = $5, stock = $6, min_stock = $7, unit = $8, active = $9, updated_at = now()
		WHERE id = $1
	`, prod.ID, prod.Name, prod.Description, prod.CostPrice, prod.SalePrice, prod.Stock, prod.MinStock, prod.Unit, prod.Active)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &prod, nil
}

func (p *Port) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE products SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (p *Port) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, contact_number, email
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactNumber, &c.Email); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return customers, nil
}

func (p *Port) CreateCustomer(ctx context.Context, req domain.CustomerDraft) (*domain.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &port.ValidationError{Field: "name", Message: "name is required"}
	}
	c := domain.Customer{
		Name:          strings.TrimSpace(req.Name),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         strings.TrimSpace(req.Email),
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, contact_number, email)
		VALUES ($1,$2,$3)
		RETURNING id
	`, c.Name, c.ContactNumber, c.Email).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Port) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `
		SELECT t.id, t.type, t.description, t.amount,
		       COALESCE(t.product_id, 0), COALESCE(t.quantity, 0), COALESCE(t.customer_id, 0),
		       t.transaction_date,
		       c.id, c.name, c.contact_number, c.email
		FROM transactions t
		LEFT JOIN customers c ON c.id = t.customer_id
		WHERE 1=1
	`
	args := make([]any, 0, 3)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += " AND t.type = $" + strconv.Itoa(len(args))
	}
	if !filter.Start.IsZero() {
		args = append(args, filter.Start)
		query += " AND t.transaction_date >= $" + strconv.Itoa(len(args))
	}
	if !filter.End.IsZero() {
		args = append(args, filter.End)
		query += " AND t.transaction_date <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY t.transaction_date DESC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 128)
	for rows.Next() {
		var t domain.Transaction
		var custID sql.NullInt64
		var custName, custContact, custEmail sql.NullString
		if err := rows.Scan(&t.ID, &t.Type, &t.Description, &t.Amount, &t.ProductID, &t.Quantity, &t.CustomerID, &t.TransactionDate, &custID, &custName, &custContact, &custEmail); err != nil {
			return nil, err
		}
		if custID.Valid {
			t.Customer = &domain.Customer{
				ID:            custID.Int64,
				Name:          custName.String,
				ContactNumber: custContact.String,
				Email:         custEmail.String,
			}
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

// CreateTransaction persists an income or expense record. Income runs in a
// serializable transaction that locks the product row, rejects the sale when
// stock is short and decrements atomically otherwise, so two concurrent
// terminals can never oversell.
func (p *Port) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.Transaction, error) {
	if err := port.ValidateTransactionRequest(req); err != nil {
		return nil, err
	}

	pgTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if req.IdempotencyKey != "" {
		var existingID int64
		err := pgTx.QueryRowContext(ctx, `
			SELECT id FROM transactions WHERE idempotency_key = $1
		`, req.IdempotencyKey).Scan(&existingID)
		if err == nil {
			_ = pgTx.Rollback()
			return p.getTransaction(ctx, existingID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	t := domain.Transaction{
		Type:            req.Type,
		Description:     req.Description,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
	}

	var productID, customerID sql.NullInt64
	var quantity sql.NullInt32

	if req.Type == domain.TxIncome {
		var stock int
		var active bool
		err := pgTx.QueryRowContext(ctx, `
			SELECT stock, active FROM products WHERE id = $1 FOR UPDATE
		`, req.ProductID).Scan(&stock, &active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, port.ErrNotFound
			}
			return nil, err
		}
		if !active {
			return nil, port.ErrNotFound
		}
		if req.Quantity > stock {
			return nil, &port.StockError{Available: stock}
		}
		if _, err := pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, req.ProductID, req.Quantity); err != nil {
			return nil, err
		}
		productID = sql.NullInt64{Int64: req.ProductID, Valid: true}
		quantity = sql.NullInt32{Int32: int32(req.Quantity), Valid: true}
		t.ProductID = req.ProductID
		t.Quantity = req.Quantity

		if req.NewCustomer != nil {
			c := domain.Customer{
				Name:          strings.TrimSpace(req.NewCustomer.Name),
				ContactNumber: strings.TrimSpace(req.NewCustomer.ContactNumber),
				Email:         strings.TrimSpace(req.NewCustomer.Email),
			}
			if err := pgTx.QueryRowContext(ctx, `
				INSERT INTO customers (name, contact_number, email)
				VALUES ($1,$2,$3)
				RETURNING id
			`, c.Name, c.ContactNumber, c.Email).Scan(&c.ID); err != nil {
				return nil, err
			}
			customerID = sql.NullInt64{Int64: c.ID, Valid: true}
			t.CustomerID = c.ID
			t.Customer = &c
		} else {
			var c domain.Customer
			err := pgTx.QueryRowContext(ctx, `
				SELECT id, name, contact_number, email FROM customers WHERE id = $1
			`, req.CustomerID).Scan(&c.ID, &c.Name, &c.ContactNumber, &c.Email)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, port.ErrNotFound
				}
				return nil, err
			}
			customerID = sql.NullInt64{Int64: c.ID, Valid: true}
			t.CustomerID = c.ID
			t.Customer = &c
		}
	}

	var key sql.NullString
	if req.IdempotencyKey != "" {
		key = sql.NullString{String: req.IdempotencyKey, Valid: true}
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO transactions (type, description, amount, product_id, quantity, customer_id, transaction_date, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, string(t.Type), t.Description, t.Amount, productID, quantity, customerID, t.TransactionDate, key).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			_ = pgTx.Rollback()
			return p.getByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Port) getTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	var t domain.Transaction
	err := p.db.QueryRowContext(ctx, `
		SELECT id, type, description, amount,
		       COALESCE(product_id, 0), COALESCE(quantity, 0), COALESCE(customer_id, 0),
		       transaction_date
		FROM transactions
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Type, &t.Description, &t.Amount, &t.ProductID, &t.Quantity, &t.CustomerID, &t.TransactionDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *Port) getByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		SELECT id FROM transactions WHERE idempotency_key = $1
	`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}
	return p.getTransaction(ctx, id)
}

func (p *Port) ListFixedExpenses(ctx context.Context, activeOnly bool) ([]domain.FixedExpense, error) {
	query := `
		SELECT id, name, description, amount, frequency, active
		FROM fixed_expenses
		ORDER BY name
	`
	if activeOnly {
		query = `
			SELECT id, name, description, amount, frequency, active
			FROM fixed_expenses
			WHERE active = true
			ORDER BY name
		`
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.FixedExpense, 0, 32)
	for rows.Next() {
		var fe domain.FixedExpense
		if err := rows.Scan(&fe.ID, &fe.Name, &fe.Description, &fe.Amount, &fe.Frequency, &fe.Active); err != nil {
			return nil, err
		}
		expenses = append(expenses, fe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return expenses, nil
}

func (p *Port) CreateFixedExpense(ctx context.Context, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	fe := domain.FixedExpense{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		Active:      true,
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO fixed_expenses (name, description, amount, frequency, active)
		VALUES ($1,$2,$3,$4,true)
		RETURNING id
	`, fe.Name, fe.Description, fe.Amount, string(fe.Frequency)).Scan(&fe.ID)
	if err != nil {
		return nil, err
	}
	return &fe, nil
}

func (p *Port) UpdateFixedExpense(ctx context.Context, id int64, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	fe := domain.FixedExpense{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Frequency:   req.Frequency,
	}
	err := p.db.QueryRowContext(ctx, `
		UPDATE fixed_expenses
		SET name = $2, description = $3, amount = $4, frequency = $5
		WHERE id = $1
		RETURNING active
	`, fe.ID, fe.Name, fe.Description, fe.Amount, string(fe.Frequency)).Scan(&fe.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, err
	}
	return &fe, nil
}

func (p *Port) SetFixedExpenseActive(ctx context.Context, id int64, active bool) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE fixed_expenses SET active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
