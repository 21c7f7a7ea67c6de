package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims carried by access tokens. Signing-link tokens for customers and
// employees also carry the contract they are bound to.
type Claims struct {
	Role       string `json:"role"`
	ContractID string `json:"contract_id,omitempty"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(token string) (model.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return model.Principal{}, ErrInvalidToken
	}
	return claims.Principal()
}

// Principal converts validated claims into the caller identity.
func (c *Claims) Principal() (model.Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	principal := model.Principal{UserID: userID, Role: model.UserRole(strings.ToLower(c.Role))}
	switch principal.Role {
	case model.UserRoleAdmin, model.UserRoleStaff:
	case model.UserRoleCustomer, model.UserRoleEmployee:
		contractID, err := uuid.Parse(c.ContractID)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: signing token without contract_id", ErrInvalidToken)
		}
		principal.ContractID = &contractID
	default:
		return model.Principal{}, fmt.Errorf("%w: %q", ErrUnknownRole, c.Role)
	}
	return principal, nil
}

// Issue signs a token for the principal. Used by tests and operator tooling.
func (p *Parser) Issue(principal model.Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = principal.UserID.String()
	c := Claims{Role: string(principal.Role), RegisteredClaims: claims}
	if principal.ContractID != nil {
		c.ContractID = principal.ContractID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
}
