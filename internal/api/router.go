package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// Geocoder turns coordinates into a human-readable place name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64, language string) (string, error)
}

// Deps are the services the API is built on.
type Deps struct {
	DB       *sql.DB
	Signer   *auth.Signer
	Lending  *lending.Service
	Geocoder Geocoder
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Signer: d.Signer}
	usersHandler := &UsersHandler{DB: d.DB}
	booksHandler := &BooksHandler{DB: d.DB}
	copiesHandler := &CopiesHandler{Lending: d.Lending}
	loansHandler := &LoansHandler{Lending: d.Lending}
	geoHandler := &GeoHandler{Geocoder: d.Geocoder}

	authMW := AuthMiddleware(d.Signer, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Books: anyone signed in can add to the catalog; removal is admin only.
	mux.Handle("GET /api/books", authed(booksHandler.List))
	mux.Handle("POST /api/books", authed(booksHandler.Create))
	mux.Handle("GET /api/books/{id}", authed(booksHandler.Get))
	mux.Handle("DELETE /api/books/{id}", admin(booksHandler.Delete))

	// Copies.
	mux.Handle("POST /api/books/{id}/copies", authed(copiesHandler.Register))
	mux.Handle("GET /api/books/{id}/copies", authed(copiesHandler.Available))
	mux.Handle("GET /api/books/{id}/copies/mine", authed(copiesHandler.Mine))
	mux.Handle("GET /api/copies", authed(copiesHandler.ListOwn))
	mux.Handle("GET /api/copies/{id}", authed(copiesHandler.Get))
	mux.Handle("PUT /api/copies/{id}", authed(copiesHandler.Update))
	mux.Handle("DELETE /api/copies/{id}", authed(copiesHandler.Delete))
	mux.Handle("POST /api/copies/{id}/availability", authed(copiesHandler.ToggleAvailability))
	mux.Handle("PUT /api/copies/{id}/location", authed(copiesHandler.SetLocation))
	mux.Handle("PUT /api/copies/{id}/photo", authed(copiesHandler.UploadPhoto))
	mux.Handle("GET /api/copies/{id}/photo", authed(copiesHandler.GetPhoto))

	// Loans.
	mux.Handle("POST /api/loans", authed(loansHandler.Create))
	mux.Handle("GET /api/loans", authed(loansHandler.List))
	mux.Handle("GET /api/loans/{id}", authed(loansHandler.Get))
	mux.Handle("POST /api/loans/{id}/status", authed(loansHandler.UpdateStatus))
	mux.Handle("PUT /api/loans/{id}/due-date", authed(loansHandler.SetDueDate))
	mux.Handle("POST /api/loans/{id}/return", authed(loansHandler.Return))
	mux.Handle("GET /api/loans/{id}/messages", authed(loansHandler.Messages))
	mux.Handle("POST /api/loans/{id}/messages", authed(loansHandler.PostMessage))

	// Geo.
	mux.Handle("GET /api/geocode/reverse", authed(geoHandler.Reverse))

	return mux
}
