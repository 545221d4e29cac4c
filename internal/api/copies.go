package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/posoja/internal/imaging"
	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// CopiesHandler handles physical copies of books.
type CopiesHandler struct {
	Lending *lending.Service
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// point returns the requested location; nil means none. Giving only one
// coordinate is an error.
func (l locationRequest) point() (*model.Point, error) {
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return nil, errInvalidCoordinates
	}
	if l.Latitude == nil {
		return nil, nil
	}
	return &model.Point{Lat: *l.Latitude, Lon: *l.Longitude}, nil
}

type copyRequest struct {
	AvailableForLoan bool `json:"is_available_for_loan"`
	locationRequest
}

// Register handles POST /api/books/{id}/copies.
func (h *CopiesHandler) Register(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req copyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := req.point()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	c, err := h.Lending.RegisterCopy(r.Context(), claims.UserID, bookID, req.AvailableForLoan, loc)
	if err != nil {
		lendingError(w, err, "register copy")
		return
	}

	slog.Info("copy registered", "user", claims.Username, "book", c.BookTitle, "copy", c.ID, "available", c.AvailableForLoan)
	jsonResponse(w, http.StatusCreated, c)
}

// Available handles GET /api/books/{id}/copies?lat=&lon=.
func (h *CopiesHandler) Available(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from, err := queryPoint(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	a, err := h.Lending.AvailableCopies(r.Context(), bookID, claims.UserID, from)
	if err != nil {
		lendingError(w, err, "list copies")
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// queryPoint reads the optional lat/lon query parameters.
func queryPoint(r *http.Request) (*model.Point, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" && q.Get("lon") == "" {
		return nil, nil
	}
	var loc struct {
		Lat float64 `validate:"gte=-90,lte=90"`
		Lon float64 `validate:"gte=-180,lte=180"`
	}
	var err error
	if loc.Lat, err = strconv.ParseFloat(q.Get("lat"), 64); err != nil {
		return nil, errInvalidCoordinates
	}
	if loc.Lon, err = strconv.ParseFloat(q.Get("lon"), 64); err != nil {
		return nil, errInvalidCoordinates
	}
	if err := validate.Struct(loc); err != nil {
		return nil, errInvalidCoordinates
	}
	return &model.Point{Lat: loc.Lat, Lon: loc.Lon}, nil
}

// Mine handles GET /api/books/{id}/copies/mine.
func (h *CopiesHandler) Mine(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	v, err := h.Lending.OwnerView(r.Context(), claims.UserID, bookID)
	if err != nil {
		lendingError(w, err, "load copy")
		return
	}
	jsonResponse(w, http.StatusOK, v)
}

// ListOwn handles GET /api/copies.
func (h *CopiesHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	copies, err := h.Lending.ListOwnerCopies(r.Context(), claims.UserID)
	if err != nil {
		lendingError(w, err, "list copies")
		return
	}
	if copies == nil {
		copies = []model.Copy{}
	}
	jsonResponse(w, http.StatusOK, copies)
}

// Get handles GET /api/copies/{id}.
func (h *CopiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.Lending.GetCopy(r.Context(), id)
	if err != nil {
		lendingError(w, err, "get copy")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Update handles PUT /api/copies/{id}.
func (h *CopiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req copyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := req.point()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	c, err := h.Lending.UpdateCopy(r.Context(), id, claims.UserID, req.AvailableForLoan, loc)
	if err != nil {
		lendingError(w, err, "update copy")
		return
	}

	slog.Info("copy updated", "user", claims.Username, "copy", c.ID, "available", c.AvailableForLoan)
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/copies/{id}.
func (h *CopiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if err := h.Lending.DeleteCopy(r.Context(), id, claims.UserID); err != nil {
		lendingError(w, err, "delete copy")
		return
	}

	slog.Info("copy deleted", "user", claims.Username, "copy", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "copy deleted"})
}

// ToggleAvailability handles POST /api/copies/{id}/availability.
func (h *CopiesHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	c, err := h.Lending.SetAvailability(r.Context(), id, claims.UserID)
	if err != nil {
		lendingError(w, err, "change availability")
		return
	}

	slog.Info("copy availability changed", "user", claims.Username, "copy", c.ID, "available", c.AvailableForLoan)
	jsonResponse(w, http.StatusOK, c)
}

// SetLocation handles PUT /api/copies/{id}/location.
func (h *CopiesHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := req.point()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	c, err := h.Lending.SetLocation(r.Context(), id, claims.UserID, loc)
	if err != nil {
		lendingError(w, err, "set location")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// UploadPhoto handles PUT /api/copies/{id}/photo (multipart, field "photo").
func (h *CopiesHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	claims := GetClaims(r.Context())
	c, err := h.Lending.SetCopyPhoto(r.Context(), id, claims.UserID, file)
	if err != nil {
		lendingError(w, err, "save photo")
		return
	}

	slog.Info("copy photo uploaded", "user", claims.Username, "copy", c.ID)
	jsonResponse(w, http.StatusOK, c)
}

// GetPhoto handles GET /api/copies/{id}/photo.
func (h *CopiesHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	photo, mime, err := h.Lending.CopyPhoto(r.Context(), id)
	if err != nil {
		lendingError(w, err, "load photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, photo); err != nil {
		slog.Warn("failed to write photo", "copy", id, "error", err)
	}
}
