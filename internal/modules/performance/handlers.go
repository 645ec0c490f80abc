package performance

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"stockfolio/internal/auth"
	"stockfolio/internal/domain"
)

// Handlers contains HTTP handlers for the performance report
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new performance handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "performance").Logger(),
	}
}

// HandleGetPerformance returns trailing history and return statistics
// for every held symbol
// GET /api/portfolio/performance
func (h *Handlers) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	report, err := h.service.GetReportForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to build performance report")
		writeError(w, http.StatusInternalServerError, "failed to build performance report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
