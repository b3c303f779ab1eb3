package domain

import "time"

type TransactionType string

const (
	TxIncome  TransactionType = "INCOME"
	TxExpense TransactionType = "EXPENSE"
)

// StockRisk classifies a product's projected remaining quantity against its
// minimum threshold. The zero value means "no product selected".
type StockRisk string

const (
	StockOK       StockRisk = "ok"
	StockLow      StockRisk = "low"
	StockDepleted StockRisk = "depleted"
)

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	CostPrice   float64 `json:"costPrice"`
	SalePrice   float64 `json:"salePrice"`
	Stock       int     `json:"stock"`
	MinStock    int     `json:"minStock"`
	Unit        string  `json:"unit"`
	Active      bool    `json:"active"`
}

// IsLowStock reports whether the product is already at or below its minimum.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

type ProductCreateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	CostPrice   float64 `json:"costPrice"`
	SalePrice   float64 `json:"salePrice"`
	Stock       int     `json:"stock"`
	MinStock    int     `json:"minStock"`
	Unit        string  `json:"unit"`
}

type ProductUpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	CostPrice   *float64 `json:"costPrice,omitempty"`
	SalePrice   *float64 `json:"salePrice,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	MinStock    *int     `json:"minStock,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

type Customer struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Email         string `json:"email,omitempty"`
}

// CustomerDraft is an unpersisted customer record, either sent to the
// customer directory directly or embedded in an income transaction request
// to create the customer inline.
type CustomerDraft struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Transaction is a persisted income or expense record returned by the
// backend. Product, quantity and customer linkage are typed optional fields
// that only income transactions carry.
type Transaction struct {
	ID              int64
	Type            TransactionType
	Description     string
	Amount          float64
	ProductID       int64
	Quantity        int
	CustomerID      int64
	Customer        *Customer
	TransactionDate time.Time
}

// TransactionRequest is the write-side variant sent once to the data port.
// Income requests carry product/quantity and either an existing customer id
// or an inline new-customer draft; expense requests carry description,
// amount and date only. Immutable once built.
type TransactionRequest struct {
	Type            TransactionType
	Description     string
	Amount          float64
	ProductID       int64
	Quantity        int
	CustomerID      int64
	NewCustomer     *CustomerDraft
	TransactionDate time.Time
	IdempotencyKey  string
}

// SaleDraft is the transient form-local aggregate behind the sale form. It
// is mutated on every field edit and translated into a TransactionRequest at
// submit time, never persisted directly.
type SaleDraft struct {
	ProductID   int64
	Quantity    int
	UnitPrice   float64
	Date        time.Time
	Notes       string
	CustomerID  int64
	NewCustomer *CustomerDraft
}

// DerivedSaleMetrics is pure computation output, recomputed from the draft
// and the selected product snapshot on every mutation and never stored.
type DerivedSaleMetrics struct {
	TotalAmount         float64
	EstimatedProfit     float64
	ProfitMarginPercent float64
	RemainingStock      int
	StockRisk           StockRisk
}

// TransactionFilter scopes a transaction list request. A zero Type matches
// both kinds; zero Start/End leave the corresponding bound open.
type TransactionFilter struct {
	Type  TransactionType
	Start time.Time
	End   time.Time
}

type Totals struct {
	Income  float64
	Expense float64
	Net     float64
}

// AggregationState is the dashboard's derived state: the current transaction
// list (newest first) and its rolling totals. Replaced wholesale on every
// successful fetch, never mutated in place.
type AggregationState struct {
	Transactions []Transaction
	Totals       Totals
}

type FixedExpenseFrequency string

const (
	FrequencyMonthly FixedExpenseFrequency = "MONTHLY"
	FrequencyWeekly  FixedExpenseFrequency = "WEEKLY"
	FrequencyYearly  FixedExpenseFrequency = "YEARLY"
)

type FixedExpense struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Amount      float64               `json:"amount"`
	Frequency   FixedExpenseFrequency `json:"frequency"`
	Active      bool                  `json:"active"`
}

type FixedExpenseDraft struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Amount      float64               `json:"amount"`
	Frequency   FixedExpenseFrequency `json:"frequency"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	IdentityDocument string `json:"identityDocument"`
	DateOfBirth      string `json:"dateOfBirth"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
