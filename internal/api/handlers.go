// Package api exposes HTTP handlers for the activity timer service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"example.com/activitytimer/internal/account"
	"example.com/activitytimer/internal/auth"
	"example.com/activitytimer/internal/backup"
	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/merge"
	"example.com/activitytimer/internal/tracker"
)

// Archive stores exported backups off-site.
type Archive interface {
	Save(ctx context.Context, ownerID string, doc backup.Document, at time.Time) (string, error)
}

// Deps are the services the handlers delegate to. Archive may be nil.
type Deps struct {
	Tracker  *tracker.Service
	Source   backup.Source
	Importer *backup.Importer
	Upgrader *account.Upgrader
	Archive  Archive
	Logger   zerolog.Logger
}

// Handler coordinates HTTP requests with the timer services.
type Handler struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("PATCH /v1/activities/{name}", h.updateActivity)
	mux.HandleFunc("DELETE /v1/activities/{name}", h.deleteActivity)
	mux.HandleFunc("GET /v1/activities/{name}/records", h.listRecords)
	mux.HandleFunc("POST /v1/activities/{name}/records", h.saveRecord)
	mux.HandleFunc("GET /v1/activities/{name}/standings", h.standings)

	mux.HandleFunc("PATCH /v1/records/{id}", h.editMemo)
	mux.HandleFunc("DELETE /v1/records/{id}", h.deleteRecord)

	mux.HandleFunc("GET /v1/backup", h.exportBackup)
	mux.HandleFunc("POST /v1/backup/import", h.importBackup)
	mux.HandleFunc("POST /v1/merge/preview", h.previewMerge)
	mux.HandleFunc("POST /v1/account/upgrade", h.upgradeAccount)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize returns the caller's claims when they carry scope. Write scope implies read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeTimerRead && claims.HasScope(auth.ScopeTimerWrite)) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

// decode parses the JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDuplicateActivity):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrValidationSkipped), errors.Is(err, domain.ErrUnsupportedBackupVersion):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, account.ErrPromotionFailed):
		writeError(w, http.StatusBadGateway, "promotion_failed", err.Error())
	case merge.IsWriteFailure(err):
		writeError(w, http.StatusInternalServerError, "merge_failed", err.Error())
	default:
		h.deps.Logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
