package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	"github.com/vendorlink/marketplace/cmd/marketplace/auth"
	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/cmd/marketplace/session"
	"github.com/vendorlink/marketplace/models/market"
)

type sessionResponse struct {
	ID      string          `json:"id"`
	State   session.State   `json:"state"`
	Account *market.Account `json:"account,omitempty"`
}

type meResponse struct {
	State   session.State   `json:"state"`
	Account *market.Account `json:"account"`
	Profile *market.Profile `json:"profile,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (mr *MarketplaceRouter) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := mr.sessions.Create()
	respondWithJSON(w, http.StatusCreated, sessionResponse{ID: s.ID(), State: s.State()})
}

func (mr *MarketplaceRouter) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := mr.sessions.Close(mux.Vars(r)["id"]); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvents streams auth state changes as server-sent events until
// the client goes away or the session is closed.
func (mr *MarketplaceRouter) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	s, err := mr.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		mr.respondWithError(w, r, errs.New(errs.KindInternal, "streaming unsupported"))
		return
	}

	events := s.Subscribe(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			mr.log.Error().Err(err).Msg("Failed to encode session event")
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.State, data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (mr *MarketplaceRouter) handleRegister(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	var reg auth.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	acct, err := s.Register(r.Context(), reg)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sessionResponse{ID: s.ID(), State: s.State(), Account: acct})
}

func (mr *MarketplaceRouter) handleLogin(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	acct, err := s.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse{ID: s.ID(), State: s.State(), Account: acct})
}

func (mr *MarketplaceRouter) handleLogout(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	if err := s.Logout(r.Context()); err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (mr *MarketplaceRouter) handleMe(w http.ResponseWriter, r *http.Request) {
	s, err := mr.session(r)
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}
	acct, err := s.RequireAccount()
	if err != nil {
		mr.respondWithError(w, r, err)
		return
	}

	resp := meResponse{State: s.State(), Account: acct}
	profile, err := mr.store.GetUserProfile(r.Context(), acct.ID)
	switch {
	case err == nil:
		resp.Profile = profile
	case errs.IsKind(err, errs.KindNotFound):
		hlog.FromRequest(r).Warn().Str("account_id", acct.ID).Msg("Signed-in account has no profile")
	default:
		mr.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
