package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// BooksHandler handles the book catalog.
type BooksHandler struct {
	DB *sql.DB
}

type createBookRequest struct {
	Title  string `json:"title" validate:"required,max=300"`
	Author string `json:"author" validate:"max=200"`
	ISBN   string `json:"isbn" validate:"omitempty,isbn"`
}

// List handles GET /api/books?q=.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := store.ListBooks(r.Context(), h.DB, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		slog.Error("failed to list books", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		jsonError(w, http.StatusBadRequest, "title is required")
		return
	}

	book, err := store.CreateBook(r.Context(), h.DB, title, strings.TrimSpace(req.Author), req.ISBN)
	if err != nil {
		slog.Error("failed to create book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("book created", "user", claims.Username, "book", book.Title)
	jsonResponse(w, http.StatusCreated, book)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	if book == nil || book.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	jsonResponse(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil || book == nil || book.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	err = store.DeleteBook(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrOpenLoan) {
		jsonError(w, http.StatusConflict, "book has copies on loan")
		return
	}
	if err != nil {
		slog.Error("failed to delete book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("book deleted", "user", claims.Username, "book", book.Title)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "book deleted"})
}
