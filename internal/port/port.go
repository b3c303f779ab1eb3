package port

import (
	"context"
	"errors"
	"fmt"

	"mitienda/client/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrRequestFailed     = errors.New("request failed")
	ErrSessionExpired    = errors.New("session expired")
)

// ValidationError reports a field-level problem with a draft or request.
// It is recovered locally: submission is blocked and the message surfaced
// next to the field, never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StockError wraps ErrInsufficientStock with the last known available
// quantity so the caller can tell the user how much is left.
type StockError struct {
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// DataPort is the contract the core consumes for all reads and writes. It is
// backed by the REST API in hosted deployments, by postgres directly in
// self-hosted mode and by the in-memory implementation in tests and demos.
type DataPort interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, req domain.CustomerDraft) (*domain.Customer, error)

	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.Transaction, error)

	ListFixedExpenses(ctx context.Context, activeOnly bool) ([]domain.FixedExpense, error)
	CreateFixedExpense(ctx context.Context, req domain.FixedExpenseDraft) (*domain.FixedExpense, error)
	UpdateFixedExpense(ctx context.Context, id int64, req domain.FixedExpenseDraft) (*domain.FixedExpense, error)
	SetFixedExpenseActive(ctx context.Context, id int64, active bool) error
}

// Authenticator is implemented by ports that own a login surface.
type Authenticator interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
}

// ValidateTransactionRequest enforces the port-boundary rules shared by all
// implementations: the tagged variant must be internally consistent before
// it goes anywhere near a backend.
func ValidateTransactionRequest(req domain.TransactionRequest) error {
	switch req.Type {
	case domain.TxIncome:
		if req.ProductID < 1 {
			return &ValidationError{Field: "productId", Message: "product is required"}
		}
		if req.Quantity < 1 {
			return &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
		}
		if req.Amount < 0 {
			return &ValidationError{Field: "amount", Message: "amount must not be negative"}
		}
		if req.CustomerID < 1 && req.NewCustomer == nil {
			return &ValidationError{Field: "customer", Message: "an existing customer or a new customer record is required"}
		}
		if req.CustomerID > 0 && req.NewCustomer != nil {
			return &ValidationError{Field: "customer", Message: "existing customer and new customer are mutually exclusive"}
		}
		if req.NewCustomer != nil && req.NewCustomer.Name == "" {
			return &ValidationError{Field: "customer.name", Message: "customer name is required"}
		}
	case domain.TxExpense:
		if req.Description == "" {
			return &ValidationError{Field: "description", Message: "description is required"}
		}
		if req.Amount <= 0 {
			return &ValidationError{Field: "amount", Message: "amount must be positive"}
		}
	default:
		return &ValidationError{Field: "type", Message: "unknown transaction type"}
	}
	if req.TransactionDate.IsZero() {
		return &ValidationError{Field: "transactionDate", Message: "date is required"}
	}
	return nil
}

// ValidateProductCreate enforces catalog invariants at the port boundary.
func ValidateProductCreate(req domain.ProductCreateRequest) error {
	if req.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if req.CostPrice < 0 {
		return &ValidationError{Field: "costPrice", Message: "cost price must not be negative"}
	}
	if req.SalePrice < 0 {
		return &ValidationError{Field: "salePrice", Message: "sale price must not be negative"}
	}
	if req.Stock < 0 {
		return &ValidationError{Field: "stock", Message: "stock must not be negative"}
	}
	if req.MinStock < 0 {
		return &ValidationError{Field: "minStock", Message: "minimum stock must not be negative"}
	}
	return nil
}

// ValidateFixedExpense checks a fixed-expense draft before persistence.
func ValidateFixedExpense(req domain.FixedExpenseDraft) error {
	if req.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	switch req.Frequency {
	case domain.FrequencyMonthly, domain.FrequencyWeekly, domain.FrequencyYearly:
	default:
		return &ValidationError{Field: "frequency", Message: "frequency must be MONTHLY, WEEKLY or YEARLY"}
	}
	return nil
}
