package sale

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mitienda/client/internal/domain"
	"mitienda/client/internal/money"
	"mitienda/client/internal/port"
)

// CustomerMode selects how the income request references its customer.
type CustomerMode string

const (
	CustomerExisting CustomerMode = "existing"
	CustomerNew      CustomerMode = "new"
)

// Catalog is the slice of the data port the engine reads products from.
type Catalog interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
}

// TransactionCreator is the slice of the data port the engine submits to.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.Transaction, error)
}

// Engine keeps derived financial and stock figures consistent with a live
// sale draft and gates submission on stock sufficiency. All mutation is
// synchronous and last-write-wins on the draft; the product snapshot is
// replaced, never mutated, on product switch.
type Engine struct {
	catalog Catalog
	creator TransactionCreator

	mu              sync.Mutex
	products        []domain.Product
	product         *domain.Product
	draft           domain.SaleDraft
	priceOverridden bool
	metrics         domain.DerivedSaleMetrics
	subscribers     []func(domain.DerivedSaleMetrics)
}

func NewEngine(catalog Catalog, creator TransactionCreator) *Engine {
	return &Engine{catalog: catalog, creator: creator}
}

// Open resets the draft for a fresh sale form: quantity 1, date now, no
// product, no price override.
func (e *Engine) Open(now time.Time) {
	e.mu.Lock()
	e.product = nil
	e.draft = domain.SaleDraft{Quantity: 1, Date: now}
	e.priceOverridden = false
	e.metrics = domain.DerivedSaleMetrics{}
	e.mu.Unlock()
	e.notify()
}

// LoadProducts pulls the sellable catalog snapshot: active products that
// still have stock.
func (e *Engine) LoadProducts(ctx context.Context) error {
	products, err := e.catalog.ListProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	sellable := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Stock > 0 {
			sellable = append(sellable, p)
		}
	}

	e.mu.Lock()
	e.products = sellable
	e.mu.Unlock()
	return nil
}

// Products returns a copy of the loaded sellable snapshot.
func (e *Engine) Products() []domain.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Product, len(e.products))
	copy(out, e.products)
	return out
}

// SearchProducts filters the loaded snapshot by name or description,
// case-insensitively. An empty term returns everything.
func (e *Engine) SearchProducts(term string) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	e.mu.Lock()
	defer e.mu.Unlock()
	if term == "" {
		out := make([]domain.Product, len(e.products))
		copy(out, e.products)
		return out
	}
	out := make([]domain.Product, 0, len(e.products))
	for _, p := range e.products {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Description), term) {
			out = append(out, p)
		}
	}
	return out
}

// SetProduct selects a product from the loaded snapshot. The draft's unit
// price follows the product's sale price unless the caller has explicitly
// overridden it. An unknown id clears the selection and zeroes all derived
// metrics.
func (e *Engine) SetProduct(id int64) {
	e.mu.Lock()
	var found *domain.Product
	for i := range e.products {
		if e.products[i].ID == id {
			snapshot := e.products[i]
			found = &snapshot
			break
		}
	}
	e.product = found
	if found == nil {
		e.draft.ProductID = 0
	} else {
		e.draft.ProductID = found.ID
		if !e.priceOverridden {
			e.draft.UnitPrice = found.SalePrice
		}
	}
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()
}

// SetQuantity updates the draft quantity. Values below 1 are invalid but do
// not crash computation: metrics degrade to zero contribution.
func (e *Engine) SetQuantity(q int) {
	e.mu.Lock()
	e.draft.Quantity = q
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()
}

// SetUnitPrice overrides the unit price; subsequent product switches keep
// the override.
func (e *Engine) SetUnitPrice(p float64) {
	e.mu.Lock()
	e.draft.UnitPrice = p
	e.priceOverridden = true
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) SetDate(t time.Time) {
	e.mu.Lock()
	e.draft.Date = t
	e.mu.Unlock()
}

func (e *Engine) SetNotes(notes string) {
	e.mu.Lock()
	e.draft.Notes = notes
	e.mu.Unlock()
}

// SetCustomer references an existing customer, clearing any inline draft.
func (e *Engine) SetCustomer(id int64) {
	e.mu.Lock()
	e.draft.CustomerID = id
	e.draft.NewCustomer = nil
	e.mu.Unlock()
}

// SetNewCustomer attaches an inline new-customer record, clearing any
// existing reference.
func (e *Engine) SetNewCustomer(c domain.CustomerDraft) {
	e.mu.Lock()
	e.draft.CustomerID = 0
	e.draft.NewCustomer = &c
	e.mu.Unlock()
}

// Draft returns a copy of the current draft.
func (e *Engine) Draft() domain.SaleDraft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Metrics returns the latest derived metrics.
func (e *Engine) Metrics() domain.DerivedSaleMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// Subscribe registers a push callback invoked after every recomputation.
func (e *Engine) Subscribe(fn func(domain.DerivedSaleMetrics)) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, fn)
	e.mu.Unlock()
}

// Recompute re-derives metrics from the current draft. Calling it twice
// with no intervening mutation yields identical output.
func (e *Engine) Recompute() {
	e.mu.Lock()
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) recomputeLocked() {
	if e.product == nil {
		e.metrics = domain.DerivedSaleMetrics{}
		return
	}

	qty := e.draft.Quantity
	if qty < 1 {
		qty = 0
	}

	total := money.Mul(float64(qty), e.draft.UnitPrice)
	costBasis := money.Mul(e.product.CostPrice, float64(qty))
	profit := money.Sum(total, -costBasis)

	var marginPct float64
	switch {
	case costBasis > 0:
		marginPct = money.Round2(profit / costBasis * 100)
	case e.draft.UnitPrice > 0:
		marginPct = 100
	default:
		marginPct = 0
	}

	remaining := e.product.Stock - qty
	var risk domain.StockRisk
	switch {
	case remaining <= 0:
		risk = domain.StockDepleted
	case remaining <= e.product.MinStock:
		risk = domain.StockLow
	default:
		risk = domain.StockOK
	}

	e.metrics = domain.DerivedSaleMetrics{
		TotalAmount:         total,
		EstimatedProfit:     profit,
		ProfitMarginPercent: marginPct,
		RemainingStock:      remaining,
		StockRisk:           risk,
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	subs := make([]func(domain.DerivedSaleMetrics), len(e.subscribers))
	copy(subs, e.subscribers)
	metrics := e.metrics
	e.mu.Unlock()
	for _, fn := range subs {
		fn(metrics)
	}
}

// ValidateForSubmit is the client-side pre-flight check. It fails with a
// StockError when the drafted quantity exceeds the known stock. The
// authoritative check stays server-side: a race between this check and the
// submit is possible and surfaces as a submission error.
func (e *Engine) ValidateForSubmit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.product == nil {
		return &port.ValidationError{Field: "productId", Message: "select a product"}
	}
	if e.draft.Quantity < 1 {
		return &port.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	if e.draft.UnitPrice < 0 {
		return &port.ValidationError{Field: "unitPrice", Message: "unit price must not be negative"}
	}
	if e.draft.Quantity > e.product.Stock {
		return &port.StockError{Available: e.product.Stock}
	}
	return nil
}

// BuildTransactionRequest assembles the immutable Income variant from the
// draft. The customer mode decides which customer fields are required.
func (e *Engine) BuildTransactionRequest(mode CustomerMode) (domain.TransactionRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.product == nil {
		return domain.TransactionRequest{}, &port.ValidationError{Field: "productId", Message: "select a product"}
	}

	req := domain.TransactionRequest{
		Type:            domain.TxIncome,
		Description:     e.draft.Notes,
		Amount:          e.metrics.TotalAmount,
		ProductID:       e.product.ID,
		Quantity:        e.draft.Quantity,
		TransactionDate: e.draft.Date,
		IdempotencyKey:  uuid.NewString(),
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("Sale of %d %s %s", e.draft.Quantity, e.product.Unit, e.product.Name)
	}

	switch mode {
	case CustomerExisting:
		if e.draft.CustomerID < 1 {
			return domain.TransactionRequest{}, &port.ValidationError{Field: "customerId", Message: "select a customer"}
		}
		req.CustomerID = e.draft.CustomerID
	case CustomerNew:
		if e.draft.NewCustomer == nil || strings.TrimSpace(e.draft.NewCustomer.Name) == "" {
			return domain.TransactionRequest{}, &port.ValidationError{Field: "customer.name", Message: "customer name is required"}
		}
		customer := *e.draft.NewCustomer
		req.NewCustomer = &customer
	default:
		return domain.TransactionRequest{}, &port.ValidationError{Field: "customerMode", Message: "unknown customer mode"}
	}

	return req, nil
}

// Submit runs the pre-flight check, builds the request and sends it once.
// Port errors pass through untouched so the caller sees the taxonomy kinds.
func (e *Engine) Submit(ctx context.Context, mode CustomerMode) (*domain.Transaction, error) {
	if err := e.ValidateForSubmit(); err != nil {
		return nil, err
	}
	req, err := e.BuildTransactionRequest(mode)
	if err != nil {
		return nil, err
	}
	return e.creator.CreateTransaction(ctx, req)
}
