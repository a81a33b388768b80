package api

import (
	"net/http"

	"alertdesk/drafts"

	"github.com/gorilla/mux"
)

// getDraft returns the pending draft input for a row, or an empty draft if
// none was saved.
func (a *API) getDraft(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	key := mux.Vars(r)["key"]

	draft, err := a.draftStore.Get(r.Context(), s.id, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load draft", err, a.logger)
		return
	}
	if draft == nil {
		draft = &drafts.Draft{}
	}
	a.respondJSON(w, draft, http.StatusOK)
}

// putDraft saves the pending draft input for a row so it survives collapsing
// the detail panel.
func (a *API) putDraft(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	key := mux.Vars(r)["key"]

	var draft drafts.Draft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.draftStore.Put(r.Context(), s.id, key, &draft); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save draft", err, a.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteDraft discards the pending draft input for a row.
func (a *API) deleteDraft(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	key := mux.Vars(r)["key"]

	if err := a.draftStore.Delete(r.Context(), s.id, key); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to discard draft", err, a.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
