package export

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
)

// Handler serves version downloads.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a GET download endpoint. It is
// mounted at /api/runs/{runID}/versions/{version}/export.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := uuid.Parse(r.PathValue("runID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return
	}
	version, err := strconv.ParseInt(r.PathValue("version"), 10, 64)
	if err != nil || version < 1 {
		http.Error(w, "invalid version number", http.StatusBadRequest)
		return
	}

	format := Format(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	result, err := h.service.Export(r.Context(), runID, version, format)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Bytes)))
	_, _ = w.Write(result.Bytes)
}
