package service

import (
	"errors"
	"fmt"
	"time"

	"payee-ledger/internal/core/domain"
	"payee-ledger/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultIntentWindow is how long an encoded intent stays payable.
const DefaultIntentWindow = 5 * time.Minute

// JWTIntentCodec implements ports.IntentCodec using HS256 JWT. The token is
// the full transport artifact: nothing is persisted at encode time, and
// Decode has no side effects.
type JWTIntentCodec struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// NewJWTIntentCodec creates an intent codec. A non-positive window falls back
// to DefaultIntentWindow.
func NewJWTIntentCodec(secret string, window time.Duration) *JWTIntentCodec {
	if window <= 0 {
		window = DefaultIntentWindow
	}
	return &JWTIntentCodec{
		secret: []byte(secret),
		window: window,
		now:    time.Now,
	}
}

// WithClock overrides the codec clock. Test use only.
func (c *JWTIntentCodec) WithClock(now func() time.Time) *JWTIntentCodec {
	c.now = now
	return c
}

// Encode signs an intent into a compact token. The expiry claim is derived
// from the issue time plus the validity window.
func (c *JWTIntentCodec) Encode(intent *domain.PaymentIntent) (string, error) {
	if intent.Payee == uuid.Nil {
		return "", apperror.ErrInvalidArgument("intent payee is required")
	}
	if !intent.Amount.IsPositive() {
		return "", apperror.ErrInvalidArgument("intent amount must be positive")
	}
	if !domain.IsValidCurrency(intent.Currency) {
		return "", apperror.ErrInvalidArgument("intent currency is invalid")
	}

	issuedAt := intent.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}

	claims := jwt.MapClaims{
		"payee":    intent.Payee.String(),
		"amount":   intent.Amount.String(),
		"currency": intent.Currency,
		"iat":      issuedAt.Unix(),
		"exp":      issuedAt.Add(c.window).Unix(),
	}
	if intent.Description != "" {
		claims["description"] = intent.Description
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("signing intent: %w", err))
	}
	return signed, nil
}

// Decode validates a token and reconstructs the intent. Expired tokens map
// to the Expired error; every other defect (bad signature, wrong algorithm,
// missing or unusable claims) maps to Malformed.
func (c *JWTIntentCodec) Decode(tokenString string) (*domain.PaymentIntent, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.ErrIntentExpired()
		}
		return nil, apperror.ErrIntentMalformed(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperror.ErrIntentMalformed(errors.New("invalid claims"))
	}

	payeeStr, _ := claims["payee"].(string)
	payee, err := uuid.Parse(payeeStr)
	if err != nil {
		return nil, apperror.ErrIntentMalformed(fmt.Errorf("invalid payee claim: %w", err))
	}

	amountStr, _ := claims["amount"].(string)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil || !amount.IsPositive() {
		return nil, apperror.ErrIntentMalformed(errors.New("invalid amount claim"))
	}

	currency, _ := claims["currency"].(string)
	if !domain.IsValidCurrency(currency) {
		return nil, apperror.ErrIntentMalformed(errors.New("invalid currency claim"))
	}

	iatFloat, ok := claims["iat"].(float64)
	if !ok {
		return nil, apperror.ErrIntentMalformed(errors.New("missing iat claim"))
	}

	description, _ := claims["description"].(string)

	return &domain.PaymentIntent{
		Payee:       payee,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		IssuedAt:    time.Unix(int64(iatFloat), 0).UTC(),
	}, nil
}
