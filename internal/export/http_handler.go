package export

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/versioned/internal/domain"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler exposes history exports over HTTP. Expected to be mounted
// at /exports/.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/history") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if kind == "" || id == "" {
		http.Error(w, "kind and id query parameters are required", http.StatusBadRequest)
		return
	}

	workbook, err := h.service.HistoryWorkbook(r.Context(), domain.Ref{Kind: kind, ID: id})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fileName := fmt.Sprintf("%s-%s-history.xlsx", kind, id)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	// Headers are already out, an error here cannot change the response.
	_, _ = workbook.WriteTo(w)
}
