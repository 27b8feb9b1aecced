package api

import (
	"log"
	"net/http"

	"github.com/apexmind/backend/internal/usage"
)

type UsageHandler struct {
	usage *usage.Service
}

func NewUsageHandler(usageService *usage.Service) *UsageHandler {
	return &UsageHandler{usage: usageService}
}

func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	summary, err := h.usage.Summarize(r.Context(), u.ID)
	if err != nil {
		log.Printf("Failed to summarize usage for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, summary)
}
