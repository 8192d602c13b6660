package middleware

import (
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// Caller converts the authenticated user into a graph service caller.
func (u *AppUser) Caller() service.Caller {
	return service.Caller{UserID: u.UserID, Role: u.Role}
}

type App struct {
	Graphs         *service.Service
	Key            jwt.Keyfunc
	MasterAPIKey   string
	MasterUserID   string
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
