package middleware

import (
	"github.com/legitrack/relnet/backend/pkg/layout"
	"github.com/legitrack/relnet/backend/pkg/network"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

type App struct {
	Network *network.Service
	Views   *layout.Registry
	// Keyfunc verifies bearer tokens. A nil Keyfunc rejects every token that
	// is not the master API key.
	Keyfunc        jwt.Keyfunc
	Limiter        *RateLimiter
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
