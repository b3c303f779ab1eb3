package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mitienda/client/internal/domain"
	"mitienda/client/internal/port"
)

func (p *Port) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))

	var email, passwordHash string
	err := p.db.QueryRowContext(ctx, `
		SELECT email, password_hash FROM users WHERE username = $1
	`, username).Scan(&email, &passwordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		return nil, errors.New("invalid credentials")
	}

	token, err := p.sign(username)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: token, Username: username, Email: email}, nil
}

func (p *Port) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return nil, &port.ValidationError{Field: "username", Message: "username must be at least 4 characters"}
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return nil, &port.ValidationError{Field: "username", Message: "username must not contain spaces"}
	}
	if len(req.Password) < 6 {
		return nil, &port.ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1,$2,$3)
	`, username, email, string(passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &port.ValidationError{Field: "username", Message: "username already exists"}
		}
		return nil, err
	}

	token, err := p.sign(username)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: token, Username: username, Email: email}, nil
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
