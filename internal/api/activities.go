package api

import (
	"net/http"
	"strconv"

	"example.com/activitytimer/internal/auth"
	"example.com/activitytimer/internal/domain"
	"example.com/activitytimer/internal/tracker"
)

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerRead)
	if !ok {
		return
	}
	acts, err := h.deps.Tracker.ListActivities(r.Context(), claims.Session())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	items := make([]ActivityView, 0, len(acts))
	for _, a := range acts {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req CreateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}
	act, err := h.deps.Tracker.CreateActivity(r.Context(), claims.Session(), req.Name, domain.RecordOrder(req.RecordOrder))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(act))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req UpdateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.deps.Tracker.SetRecordOrder(r.Context(), claims.Session(), r.PathValue("name"), domain.RecordOrder(req.RecordOrder)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	removed, err := h.deps.Tracker.DeleteActivity(r.Context(), claims.Session(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records_deleted": removed})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerRead)
	if !ok {
		return
	}
	by, err := tracker.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	recs, err := h.deps.Tracker.ListRecords(r.Context(), claims.Session(), r.PathValue("name"), by)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListRecordsResponse{Items: toRecordViews(recs)})
}

func (h *Handler) saveRecord(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req SaveRecordRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.deps.Tracker.SaveRecord(r.Context(), claims.Session(), domain.Record{
		ActivityName:   r.PathValue("name"),
		ElapsedSeconds: req.ElapsedSeconds,
		RecordedAt:     req.RecordedAt,
		Memo:           req.Memo,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordView(rec))
}

func (h *Handler) standings(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerRead)
	if !ok {
		return
	}
	limit := tracker.DefaultStandingsSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 50 {
				parsed = 50
			}
			limit = parsed
		}
	}
	st, err := h.deps.Tracker.Standings(r.Context(), claims.Session(), r.PathValue("name"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := StandingsResponse{
		Activity:    st.Activity,
		RecordOrder: string(st.Order),
		Best:        toRecordViews(st.Best),
	}
	if st.Latest != nil {
		latest := toRecordView(*st.Latest)
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) editMemo(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	var req EditMemoRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.deps.Tracker.EditMemo(r.Context(), claims.Session(), r.PathValue("id"), req.Memo)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeTimerWrite)
	if !ok {
		return
	}
	if err := h.deps.Tracker.DeleteRecord(r.Context(), claims.Session(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
