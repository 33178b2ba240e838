// Package auth turns bearer tokens into actors. Tokens are issued elsewhere;
// this service only verifies them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

const actorContextKey = "actor"

var ErrInvalidToken = errors.New("invalid token")

type Actor struct {
	ID    string
	Email string
	Role  string
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == entity.RoleAdmin
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

func (p *TokenParser) Parse(raw string) (*Actor, error) {
	if len(p.secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is not configured", ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = entity.RoleUser
	}
	return &Actor{ID: claims.Subject, Email: claims.Email, Role: role}, nil
}

func bearerToken(c echo.Context) string {
	header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Optional attaches the actor when a valid token is present. Missing or
// invalid tokens leave the request anonymous.
func (p *TokenParser) Optional() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := bearerToken(c); token != "" {
				if actor, err := p.Parse(token); err == nil {
					c.Set(actorContextKey, actor)
				}
			}
			return next(c)
		}
	}
}

func (p *TokenParser) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "authentication required"})
			}
			actor, err := p.Parse(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid token"})
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

// RequireAdmin must run after Require.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ActorFromContext(c).IsAdmin() {
				return c.JSON(http.StatusForbidden, &types.ErrorResponse{Error: "admin access required"})
			}
			return next(c)
		}
	}
}

func ActorFromContext(c echo.Context) *Actor {
	actor, _ := c.Get(actorContextKey).(*Actor)
	return actor
}

// WithActor is used by tests and internal callers that already resolved the actor.
func WithActor(c echo.Context, actor *Actor) {
	c.Set(actorContextKey, actor)
}
