package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
)

type userAccount struct {
	username     string
	email        string
	passwordHash string
}

// Port is the in-memory data port used by tests and demo mode. It enforces
// the same boundary rules as the real backends, including atomic stock
// decrement with an insufficient-stock rejection.
type Port struct {
	mu            sync.Mutex
	products      map[int64]domain.Product
	customers     map[int64]domain.Customer
	transactions  []domain.Transaction
	fixedExpenses map[int64]domain.FixedExpense
	users         map[string]userAccount
	idempotency   map[string]int64
	nextID        int64

	authSecret []byte
	tokenTTL   time.Duration
}

func New() *Port {
	return &Port{
		products:      make(map[int64]domain.Product),
		customers:     make(map[int64]domain.Customer),
		fixedExpenses: make(map[int64]domain.FixedExpense),
		users:         make(map[string]userAccount),
		idempotency:   make(map[string]int64),
		authSecret:    []byte("demo-only-secret"),
		tokenTTL:      8 * time.Hour,
	}
}

// NewSeeded returns a port preloaded with a small demo catalog and a
// demo/demo123 account.
func NewSeeded() *Port {
	p := New()
	seed := []domain.Product{
		{Name: "Café molido 500g", Description: "Café de la región", CostPrice: 9000, SalePrice: 14000, Stock: 25, MinStock: 5, Unit: "bolsa", Active: true},
		{Name: "Panela redonda", CostPrice: 2500, SalePrice: 4000, Stock: 60, MinStock: 10, Unit: "unidad", Active: true},
		{Name: "Arroz 1kg", CostPrice: 3200, SalePrice: 4800, Stock: 40, MinStock: 8, Unit: "paquete", Active: true},
		{Name: "Aceite 900ml", CostPrice: 8500, SalePrice: 12500, Stock: 12, MinStock: 4, Unit: "botella", Active: true},
	}
	for _, prod := range seed {
		p.nextID++
		prod.ID = p.nextID
		p.products[prod.ID] = prod
	}
	p.nextID++
	p.customers[p.nextID] = domain.Customer{ID: p.nextID, Name: "Cliente frecuente", ContactNumber: "3000000000"}
	hash, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.DefaultCost)
	if err == nil {
		p.users["demo"] = userAccount{username: "demo", email: "demo@mitienda.local", passwordHash: string(hash)}
	}
	return p
}

func (p *Port) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Product, 0, len(p.products))
	for _, prod := range p.products {
		if activeOnly && !prod.Active {
			continue
		}
		out = append(out, prod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Port) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.products[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &prod, nil
}

func (p *Port) CreateProduct(_ context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := port.ValidateProductCreate(req); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	prod := domain.Product{
		ID:          p.nextID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		Unit:        req.Unit,
		Active:      true,
	}
	p.products[prod.ID] = prod
	return &prod, nil
}

func (p *Port) UpdateProduct(_ context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.products[id]
	if !ok {
		return nil, port.ErrNotFound
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
	p.products[id] = prod
	return &prod, nil
}

func (p *Port) DeactivateProduct(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.products[id]
	if !ok {
		return port.ErrNotFound
	}
	prod.Active = false
	p.products[id] = prod
	return nil
}

func (p *Port) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Customer, 0, len(p.customers))
	for _, c := range p.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Port) CreateCustomer(_ context.Context, req domain.CustomerDraft) (*domain.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &port.ValidationError{Field: "name", Message: "name is required"}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.createCustomerLocked(req)
	return &c, nil
}

func (p *Port) createCustomerLocked(req domain.CustomerDraft) domain.Customer {
	p.nextID++
	c := domain.Customer{
		ID:            p.nextID,
		Name:          strings.TrimSpace(req.Name),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         strings.TrimSpace(req.Email),
	}
	p.customers[c.ID] = c
	return c
}

func (p *Port) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Transaction, 0, len(p.transactions))
	for _, t := range p.transactions {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if !filter.Start.IsZero() && t.TransactionDate.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && t.TransactionDate.After(filter.End) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *Port) CreateTransaction(_ context.Context, req domain.TransactionRequest) (*domain.Transaction, error) {
	if err := port.ValidateTransactionRequest(req); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := p.idempotency[req.IdempotencyKey]; ok {
			for _, t := range p.transactions {
				if t.ID == id {
					existing := t
					return &existing, nil
				}
			}
		}
	}

	tx := domain.Transaction{
		Type:            req.Type,
		Description:     req.Description,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
	}

	if req.Type == domain.TxIncome {
		prod, ok := p.products[req.ProductID]
		if !ok || !prod.Active {
			return nil, port.ErrNotFound
		}
		if req.Quantity > prod.Stock {
			return nil, &port.StockError{Available: prod.Stock}
		}
		prod.Stock -= req.Quantity
		p.products[prod.ID] = prod
		tx.ProductID = prod.ID
		tx.Quantity = req.Quantity

		if req.NewCustomer != nil {
			c := p.createCustomerLocked(*req.NewCustomer)
			tx.CustomerID = c.ID
			tx.Customer = &c
		} else {
			c, ok := p.customers[req.CustomerID]
			if !ok {
				return nil, port.ErrNotFound
			}
			tx.CustomerID = c.ID
			tx.Customer = &c
		}
	}

	p.nextID++
	tx.ID = p.nextID
	p.transactions = append(p.transactions, tx)
	if req.IdempotencyKey != "" {
		p.idempotency[req.IdempotencyKey] = tx.ID
	}
	return &tx, nil
}

func (p *Port) ListFixedExpenses(_ context.Context, activeOnly bool) ([]domain.FixedExpense, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.FixedExpense, 0, len(p.fixedExpenses))
	for _, fe := range p.fixedExpenses {
		if activeOnly && !fe.Active {
			continue
		}
		out = append(out, fe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Port) CreateFixedExpense(_ context.Context, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	fe := domain.FixedExpense{
		ID:          p.nextID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		Active:      true,
	}
	p.fixedExpenses[fe.ID] = fe
	return &fe, nil
}

func (p *Port) UpdateFixedExpense(_ context.Context, id int64, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, ok := p.fixedExpenses[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	fe.Name = strings.TrimSpace(req.Name)
	fe.Description = strings.TrimSpace(req.Description)
	fe.Amount = req.Amount
	fe.Frequency = req.Frequency
	p.fixedExpenses[id] = fe
	return &fe, nil
}

func (p *Port) SetFixedExpenseActive(_ context.Context, id int64, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, ok := p.fixedExpenses[id]
	if !ok {
		return port.ErrNotFound
	}
	fe.Active = active
	p.fixedExpenses[id] = fe
	return nil
}

func (p *Port) Login(_ context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	p.mu.Lock()
	account, ok := p.users[strings.ToLower(strings.TrimSpace(req.Username))]
	p.mu.Unlock()
	if !ok {
		return nil, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(account.passwordHash), []byte(req.Password)) != nil {
		return nil, errors.New("invalid credentials")
	}
	token, err := p.sign(account.username)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: token, Username: account.username, Email: account.email}, nil
}

func (p *Port) Register(_ context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return nil, &port.ValidationError{Field: "username", Message: "username must be at least 4 characters"}
	}
	if len(req.Password) < 6 {
		return nil, &port.ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, exists := p.users[username]; exists {
		p.mu.Unlock()
		return nil, &port.ValidationError{Field: "username", Message: "username already exists"}
	}
	p.users[username] = userAccount{username: username, email: strings.TrimSpace(req.Email), passwordHash: string(hash)}
	p.mu.Unlock()

	token, err := p.sign(username)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: token, Username: username, Email: strings.TrimSpace(req.Email)}, nil
}

func (p *Port) sign(username string) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwtlib.NewNumericDate(time.Now().UTC().Add(p.tokenTTL)),
		Issuer:    "mitienda",
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(p.authSecret)
}
