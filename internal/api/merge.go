package api

import (
	"net/http"

	"example.com/activitytimer/internal/auth"
	"example.com/activitytimer/internal/backup"
	"example.com/activitytimer/internal/merge"
)

// exportBackup returns the caller's data as a backup document. With ?archive=true the document is
// also stored in the backup archive and its key returned in the X-Archive-Key header.
func (h *Handler) exportBackup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerRead)
	if !ok {
		return
	}
	now := h.now()
	doc, err := backup.Export(r.Context(), h.deps.Source, claims.Subject, now)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if r.URL.Query().Get("archive") == "true" {
		if h.deps.Archive == nil {
			writeError(w, http.StatusNotImplemented, "not_configured", "backup archive is not configured")
			return
		}
		key, err := h.deps.Archive.Save(r.Context(), claims.Subject, doc, now)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.Header().Set("X-Archive-Key", key)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="activity-timer-backup.json"`)
	w.WriteHeader(http.StatusOK)
	if err := backup.Encode(w, doc); err != nil {
		h.deps.Logger.Error().Err(err).Msg("write backup body")
	}
}

func (h *Handler) importBackup(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req ImportRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := backup.DecodeBytes(req.Backup)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	prompter := merge.StaticPrompter{Confirm: req.Confirm, MergeCollisions: req.MergeCollisions}
	out, err := h.deps.Importer.Import(r.Context(), claims.Session(), prompter, doc)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// previewMerge answers the collision question before a merge is committed, so a client can ask
// its user the second confirmation with the colliding names in hand.
func (h *Handler) previewMerge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerRead)
	if !ok {
		return
	}
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	acts, err := h.deps.Source.ListActivities(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	current := make([]string, 0, len(acts))
	for _, a := range acts {
		current = append(current, a.Name)
	}
	collisions := merge.PlanCollisions(req.Names, current)
	if collisions == nil {
		collisions = []string{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Collisions: collisions})
}

func (h *Handler) upgradeAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req UpgradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	prompter := merge.StaticPrompter{Confirm: req.Confirm, MergeCollisions: req.MergeCollisions}
	res, err := h.deps.Upgrader.Upgrade(r.Context(), claims.Identity(), req.Credential, prompter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
