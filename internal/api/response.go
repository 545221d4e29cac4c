package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/posoja/internal/lending"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into target and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(target); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

// validationMessage turns validator errors into a short message naming the fields.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_with":
			parts = append(parts, field+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "gte", "lte":
			parts = append(parts, field+" is out of range")
		case "min":
			parts = append(parts, field+" is too short")
		case "max":
			parts = append(parts, field+" is too long")
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// pathID parses a numeric path parameter, writing a 400 if it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// lendingError writes the response for an error returned by the lending service.
func lendingError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, lending.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lending.ErrAuthorization):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lending.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lending.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lending.ErrConflict):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"retryable": lending.IsRetryable(err),
		})
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

var errInvalidCoordinates = errors.New("lat and lon must both be valid coordinates")
