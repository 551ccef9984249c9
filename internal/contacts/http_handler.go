package contacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/versioned/internal/auth"
	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/repository"
	"github.com/rpattn/versioned/internal/versioning"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler exposes the contact service over REST. Expected to be
// mounted at /contacts/.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = actorContext(r)

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/contacts"), "/")
	segments := []string{}
	if rest != "" {
		segments = strings.Split(rest, "/")
	}

	switch {
	case len(segments) == 0 && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case len(segments) == 0 && r.Method == http.MethodGet:
		h.handleList(w, r)
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, segments[0])
	case len(segments) == 1 && r.Method == http.MethodPatch:
		h.handleUpdate(w, r, segments[0])
	case len(segments) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "versions" && r.Method == http.MethodGet:
		h.handleListVersions(w, r, segments[0])
	case len(segments) == 3 && segments[1] == "versions" && r.Method == http.MethodGet:
		h.handleGetVersion(w, r, segments[0], segments[2])
	case len(segments) == 2 && segments[1] == "diff" && r.Method == http.MethodGet:
		h.handleDiff(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "revert" && r.Method == http.MethodPost:
		h.handleRevert(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "history" && r.Method == http.MethodGet:
		h.handleFieldHistory(w, r, segments[0])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// actorContext lifts the acting principal from request headers into the
// context so versions are attributed without any ambient global state.
func actorContext(r *http.Request) *http.Request {
	kind := strings.TrimSpace(r.Header.Get("X-Actor-Kind"))
	id := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	if kind == "" || id == "" {
		return r
	}
	ctx := auth.ContextWithActor(r.Context(), domain.Ref{Kind: kind, ID: id})
	return r.WithContext(ctx)
}

type createPayload struct {
	Fields map[string]any `json:"fields"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	contact, err := h.service.Create(r.Context(), payload.Fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, contact)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	contacts, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	contact, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contact)
}

type updatePayload struct {
	Changes map[string]any `json:"changes"`
}

type updateResponse struct {
	Contact domain.Contact        `json:"contact"`
	Version *domain.VersionRecord `json:"version"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	contact, record, err := h.service.Update(r.Context(), id, payload.Changes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Contact: contact, Version: record})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	records, err := h.service.Versions(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request, rawID, rawVersion string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	if rawVersion == "latest" {
		record, err := h.service.Latest(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeVersion(w, record)
		return
	}

	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid version %q", rawVersion), http.StatusBadRequest)
		return
	}

	record, err := h.service.Version(r.Context(), id, version)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeVersion(w, record)
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	from, err := optionalVersionParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := optionalVersionParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	diff, err := h.service.Diff(r.Context(), id, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, diff)
}

type revertPayload struct {
	Version int64 `json:"version"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	var payload revertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	contact, record, err := h.service.Revert(r.Context(), id, payload.Version)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Contact: contact, Version: record})
}

func (h *Handler) handleFieldHistory(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}

	fields := r.URL.Query()["field"]
	if len(fields) == 0 {
		http.Error(w, "at least one field query parameter is required", http.StatusBadRequest)
		return
	}

	history, err := h.service.FieldsHistory(r.Context(), id, fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func parseID(w http.ResponseWriter, rawID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid contact id %q", rawID), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func optionalVersionParam(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s version %q", name, raw)
	}
	return &version, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeVersion(w http.ResponseWriter, record *domain.VersionRecord) {
	if record == nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		http.Error(w, "contact not found", http.StatusNotFound)
	case errors.Is(err, versioning.ErrVersionNotFound):
		http.Error(w, "version not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrVersionConflict):
		http.Error(w, "version conflict, retry the update", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Response already started; an encode failure here has nowhere to go.
	_ = json.NewEncoder(w).Encode(body)
}
