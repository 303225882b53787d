// Package auth issues and validates the bearer tokens that guard dispatcher
// operations.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Roles carried in tokens.
const (
	RoleDispatcher = "dispatcher"
	RoleViewer     = "viewer"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims are the JWT claims of an operator token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	operators map[string]Operator
	now       func() time.Time
}

// NewIssuer builds an Issuer from the configuration.
func NewIssuer(conf Conf) *Issuer {
	conf.SetDefaults()
	ops := make(map[string]Operator, len(conf.Operators))
	for _, op := range conf.Operators {
		ops[op.Username] = op
	}
	return &Issuer{
		secret:    []byte(conf.Secret),
		issuer:    conf.Issuer,
		ttl:       conf.TokenTTL,
		operators: ops,
		now:       time.Now,
	}
}

// GenerateToken signs a token for username with role.
func (i *Issuer) GenerateToken(username, role string) (string, error) {
	now := i.now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken parses and verifies a token string.
func (i *Issuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Login checks the operator password and returns a fresh token.
func (i *Issuer) Login(username, password string) (string, *Operator, error) {
	op, ok := i.operators[username]
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := i.GenerateToken(op.Username, op.Role)
	if err != nil {
		return "", nil, err
	}
	return tok, &op, nil
}

// HashPassword returns the bcrypt hash to store in Operator.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
