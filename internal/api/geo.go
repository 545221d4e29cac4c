package api

import (
	"log/slog"
	"net/http"
)

// GeoHandler resolves coordinates to place names for display.
type GeoHandler struct {
	Geocoder Geocoder
}

// Reverse handles GET /api/geocode/reverse?lat=&lon=&lang=.
func (h *GeoHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	loc, err := queryPoint(r)
	if err != nil || loc == nil {
		jsonError(w, http.StatusBadRequest, errInvalidCoordinates.Error())
		return
	}
	if h.Geocoder == nil {
		jsonError(w, http.StatusServiceUnavailable, "geocoding is not configured")
		return
	}

	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}

	name, err := h.Geocoder.ReverseGeocode(r.Context(), loc.Lat, loc.Lon, lang)
	if err != nil {
		slog.Warn("reverse geocoding failed", "lat", loc.Lat, "lon", loc.Lon, "error", err)
		jsonError(w, http.StatusBadGateway, "geocoding failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"name": name})
}
