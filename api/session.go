package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"alertdesk/view"

	"github.com/google/uuid"
)

// sessionHeader carries the session ID. A request without one opens a new
// session; the assigned ID is echoed back so the caller can keep it.
const sessionHeader = "X-Alertdesk-Session"

// session owns one view controller plus its draft namespace. The vocabulary
// bootstrap runs once per session, before the first listing query.
type session struct {
	id         string
	controller *view.Controller
	bootstrap  sync.Once
	lastSeen   time.Time
}

// getSession returns the request's session, creating one on first contact.
// The bootstrap (filter vocabulary plus initial listing, seeded from the
// request's URL query parameters) runs before the session is first used.
func (a *API) getSession(w http.ResponseWriter, r *http.Request) *session {
	id := r.Header.Get(sessionHeader)

	a.sessionsMu.Lock()
	s, ok := a.sessions[id]
	if !ok {
		if id == "" {
			id = uuid.NewString()
		}
		s = &session{
			id:         id,
			controller: view.NewController(a.backend, a.logger),
		}
		a.sessions[id] = s
	}
	s.lastSeen = time.Now()
	a.sessionsMu.Unlock()

	s.bootstrap.Do(func() {
		if params := r.URL.Query(); len(params) > 0 {
			a.applySharedLink(r.Context(), s, params)
		}
		if err := s.controller.Bootstrap(r.Context()); err != nil {
			a.logger.Warnf("session %s bootstrap: %v", s.id, err)
		}
	})

	w.Header().Set(sessionHeader, id)
	return s
}

// applySharedLink overlays shared-link query parameters onto a fresh
// session's view state. Queries are still gated on the bootstrap, so this
// only mutates state.
func (a *API) applySharedLink(ctx context.Context, s *session, params url.Values) {
	if err := s.controller.ApplyQuery(ctx, params); err != nil {
		a.logger.Warnf("session %s shared link: %v", s.id, err)
	}
}

// expireSessions drops sessions idle longer than maxIdle and clears their
// draft state.
func (a *API) expireSessions(maxIdle time.Duration) {
	a.sessionsMu.Lock()
	var expired []string
	for id, s := range a.sessions {
		if time.Since(s.lastSeen) > maxIdle {
			delete(a.sessions, id)
			expired = append(expired, id)
		}
	}
	a.sessionsMu.Unlock()

	for _, id := range expired {
		if err := a.draftStore.Clear(context.Background(), id); err != nil {
			a.logger.Warnf("failed to clear drafts for expired session %s: %v", id, err)
		}
	}
}
