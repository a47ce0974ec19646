package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated staff member making the request.
type Actor struct {
	ID       uuid.UUID
	Name     string
	Role     Role
	BranchID uuid.UUID
}

// IsAdmin reports whether the actor bypasses branch scoping and role gates.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ScopeBranch resolves the branch filter for a request. Admins see any
// branch (uuid.Nil means all); everyone else is pinned to their own.
// Requesting another branch explicitly is a scope violation.
func (a Actor) ScopeBranch(requested uuid.UUID) (uuid.UUID, error) {
	if a.IsAdmin() {
		return requested, nil
	}
	if requested != uuid.Nil && requested != a.BranchID {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "branch out of scope")
	}
	return a.BranchID, nil
}

type Claims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
}

// JWTMiddleware authenticates bearer tokens and stores the resolved Actor
// on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			ctx := context.WithValue(c.Request().Context(), actorKey, actor)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func actorFromClaims(claims *Claims) (Actor, error) {
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Actor{}, err
	}
	staffID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, err
	}
	// Branch may be absent for admins.
	branchID, _ := uuid.Parse(claims.BranchID)
	return Actor{ID: staffID, Name: claims.Name, Role: role, BranchID: branchID}, nil
}

// DevAuthMiddleware is a permissive middleware for development that grants
// unauthenticated requests an admin actor.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				actor := Actor{ID: uuid.New(), Name: "dev-admin", Role: RoleAdmin}
				ctx := context.WithValue(c.Request().Context(), actorKey, actor)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// ActorFromContext retrieves the authenticated actor. The zero Actor is
// returned when the request was not authenticated.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor
}

// ContextWithActor is used by tests to simulate an authenticated request.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}
