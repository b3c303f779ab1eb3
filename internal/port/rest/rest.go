package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mitienda/client/internal/daterange"
	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
	"mitienda/client/internal/session"
)

// Client is the REST-backed data port used against a hosted backend. All
// wire timestamps use the naive local layout; the configured location decides
// how they are read back.
type Client struct {
	http    *http.Client
	baseURL string
	session *session.Session
	loc     *time.Location
}

func New(baseURL string, sess *session.Session) *Client {
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		loc:     time.Local,
	}
}

// SetLocation overrides the zone used to interpret wire timestamps. For tests.
func (c *Client) SetLocation(loc *time.Location) {
	c.loc = loc
}

type errorPayload struct {
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		token, err := c.session.Token()
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", port.ErrRequestFailed, err)
	}
	return nil
}

// decodeError maps backend failures onto the client taxonomy. Insufficient
// stock arrives as a 400 whose message names the stock problem, matching the
// backend's contract, so it is distinguished from other validation failures
// by message inspection.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)
	if payload.Message == "" {
		payload.Message = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return port.ErrSessionExpired
	case http.StatusNotFound:
		return port.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict:
		if strings.Contains(strings.ToLower(payload.Message), "stock") {
			available := 0
			if payload.Available != nil {
				available = *payload.Available
			}
			return &port.StockError{Available: available}
		}
		return &port.ValidationError{Field: payload.Field, Message: payload.Message}
	}
	return fmt.Errorf("%w: status %d: %s", port.ErrRequestFailed, resp.StatusCode, payload.Message)
}

func (c *Client) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := url.Values{}
	if activeOnly {
		query.Set("activeOnly", "true")
	}
	var out []domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := port.ValidateProductCreate(req); err != nil {
		return nil, err
	}
	var out domain.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, http.MethodPut, "/api/products/"+strconv.FormatInt(id, 10), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeactivateProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/products/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	if err := c.do(ctx, http.MethodGet, "/api/customers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req domain.CustomerDraft) (*domain.Customer, error) {
	var out domain.Customer
	if err := c.do(ctx, http.MethodPost, "/api/customers", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type transactionDTO struct {
	ID              int64            `json:"id"`
	Type            string           `json:"type"`
	Description     string           `json:"description"`
	Amount          float64          `json:"amount"`
	ProductID       *int64           `json:"productId,omitempty"`
	Quantity        *int             `json:"quantity,omitempty"`
	CustomerID      *int64           `json:"customerId,omitempty"`
	Customer        *domain.Customer `json:"customer,omitempty"`
	TransactionDate string           `json:"transactionDate"`
}

func (c *Client) fromDTO(dto transactionDTO) (domain.Transaction, error) {
	t := domain.Transaction{
		ID:          dto.ID,
		Type:        domain.TransactionType(dto.Type),
		Description: dto.Description,
		Amount:      dto.Amount,
		Customer:    dto.Customer,
	}
	if dto.ProductID != nil {
		t.ProductID = *dto.ProductID
	}
	if dto.Quantity != nil {
		t.Quantity = *dto.Quantity
	}
	if dto.CustomerID != nil {
		t.CustomerID = *dto.CustomerID
	}
	if dto.TransactionDate != "" {
		date, err := daterange.ParseNaive(dto.TransactionDate, c.loc)
		if err != nil {
			return domain.Transaction{}, err
		}
		t.TransactionDate = date
	}
	return t, nil
}

func (c *Client) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := url.Values{}
	if filter.Type != "" {
		query.Set("type", string(filter.Type))
	}
	if !filter.Start.IsZero() {
		query.Set("startDate", daterange.FormatNaive(filter.Start))
	}
	if !filter.End.IsZero() {
		query.Set("endDate", daterange.FormatNaive(filter.End))
	}

	var dtos []transactionDTO
	if err := c.do(ctx, http.MethodGet, "/api/transactions", query, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(dtos))
	for _, dto := range dtos {
		t, err := c.fromDTO(dto)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", port.ErrRequestFailed, err)
		}
		out = append(out, t)
	}
	return out, nil
}

type transactionRequestDTO struct {
	Type            string                `json:"type"`
	Description     string                `json:"description"`
	Amount          float64               `json:"amount"`
	ProductID       *int64                `json:"productId,omitempty"`
	Quantity        *int                  `json:"quantity,omitempty"`
	CustomerID      *int64                `json:"customerId,omitempty"`
	NewCustomer     *domain.CustomerDraft `json:"newCustomer,omitempty"`
	TransactionDate string                `json:"transactionDate"`
	IdempotencyKey  string                `json:"idempotencyKey,omitempty"`
}

func (c *Client) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.Transaction, error) {
	if err := port.ValidateTransactionRequest(req); err != nil {
		return nil, err
	}

	dto := transactionRequestDTO{
		Type:            string(req.Type),
		Description:     req.Description,
		Amount:          req.Amount,
		TransactionDate: daterange.FormatNaive(req.TransactionDate),
		IdempotencyKey:  req.IdempotencyKey,
	}
	if req.Type == domain.TxIncome {
		dto.ProductID = &req.ProductID
		dto.Quantity = &req.Quantity
		if req.NewCustomer != nil {
			dto.NewCustomer = req.NewCustomer
		} else {
			dto.CustomerID = &req.CustomerID
		}
	}

	var created transactionDTO
	if err := c.do(ctx, http.MethodPost, "/api/transactions", nil, dto, &created); err != nil {
		return nil, err
	}
	t, err := c.fromDTO(created)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrRequestFailed, err)
	}
	return &t, nil
}

func (c *Client) ListFixedExpenses(ctx context.Context, activeOnly bool) ([]domain.FixedExpense, error) {
	query := url.Values{}
	if activeOnly {
		query.Set("activeOnly", "true")
	}
	var out []domain.FixedExpense
	if err := c.do(ctx, http.MethodGet, "/api/fixed-expenses", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateFixedExpense(ctx context.Context, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	var out domain.FixedExpense
	if err := c.do(ctx, http.MethodPost, "/api/fixed-expenses", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateFixedExpense(ctx context.Context, id int64, req domain.FixedExpenseDraft) (*domain.FixedExpense, error) {
	if err := port.ValidateFixedExpense(req); err != nil {
		return nil, err
	}
	var out domain.FixedExpense
	if err := c.do(ctx, http.MethodPut, "/api/fixed-expenses/"+strconv.FormatInt(id, 10), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetFixedExpenseActive(ctx context.Context, id int64, active bool) error {
	query := url.Values{}
	query.Set("active", strconv.FormatBool(active))
	return c.do(ctx, http.MethodPatch, "/api/fixed-expenses/"+strconv.FormatInt(id, 10)+"/status", query, nil, nil)
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
