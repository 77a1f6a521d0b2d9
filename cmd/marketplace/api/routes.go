package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/cmd/marketplace/favorites"
	"github.com/vendorlink/marketplace/cmd/marketplace/loyalty"
	"github.com/vendorlink/marketplace/cmd/marketplace/session"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
)

const apiPrefix = "/api/v1"

// SessionHeader carries the session id on every session-bound request.
const SessionHeader = "X-Session-ID"

type MarketplaceRouter struct {
	store     store.DocumentStore
	sessions  *session.Registry
	favorites *favorites.FavoritesService
	loyalty   *loyalty.LoyaltyService
	pipeline  *discovery.Pipeline
	log       zerolog.Logger
}

func NewMarketplaceRouter(
	documents store.DocumentStore,
	sessions *session.Registry,
	favoritesService *favorites.FavoritesService,
	loyaltyService *loyalty.LoyaltyService,
	pipeline *discovery.Pipeline,
	log zerolog.Logger,
) *MarketplaceRouter {
	return &MarketplaceRouter{
		store:     documents,
		sessions:  sessions,
		favorites: favoritesService,
		loyalty:   loyaltyService,
		pipeline:  pipeline,
		log:       log.With().Str("component", "api").Logger(),
	}
}

func (mr *MarketplaceRouter) SetupRoutes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr.respondWithError(w, r, errs.New(errs.KindNotFound, "no such endpoint"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Kind: "method_not_allowed"})
	})

	r.HandleFunc("/healthz", mr.handleHealth).Methods(http.MethodGet)

	// Registered on the root router: a PathPrefix subrouter reports method
	// mismatches as 404.
	r.HandleFunc(apiPrefix+"/sessions", mr.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/sessions/{id}", mr.handleCloseSession).Methods(http.MethodDelete)
	r.HandleFunc(apiPrefix+"/sessions/{id}/events", mr.handleSessionEvents).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/auth/register", mr.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/auth/login", mr.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/auth/logout", mr.handleLogout).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/auth/me", mr.handleMe).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/suppliers", mr.handleListSuppliers).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/suppliers/{id}", mr.handleGetSupplier).Methods(http.MethodGet)

	r.HandleFunc(apiPrefix+"/favorites", mr.handleListFavorites).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/favorites/suppliers", mr.handleFavoriteSuppliers).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/favorites/{supplierID}", mr.handleIsFavorite).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/favorites/{supplierID}/toggle", mr.handleToggleFavorite).Methods(http.MethodPost)

	r.HandleFunc(apiPrefix+"/compare", mr.handleGetCompare).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/compare", mr.handleClearCompare).Methods(http.MethodDelete)
	r.HandleFunc(apiPrefix+"/compare/{supplierID}", mr.handleAddCompare).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/compare/{supplierID}", mr.handleRemoveCompare).Methods(http.MethodDelete)

	r.HandleFunc(apiPrefix+"/profiles/{id}", mr.handleGetProfile).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/profile", mr.handleUpdateProfile).Methods(http.MethodPut)

	r.HandleFunc(apiPrefix+"/loyalty", mr.handleListLoyalty).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/loyalty/{supplierID}", mr.handleGetLoyalty).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/loyalty/{supplierID}", mr.handleStartLoyalty).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/loyalty/{supplierID}/orders", mr.handleRecordOrder).Methods(http.MethodPost)

	r.HandleFunc(apiPrefix+"/categories", mr.handleCategories).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/cities", mr.handleCities).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/loyalty-tiers", mr.handleTiers).Methods(http.MethodGet)

	var h http.Handler = r
	h = mr.recoverer(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(mr.log)(h)
	return h
}

func (mr *MarketplaceRouter) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Msg("Recovered from panic")
				respondWithJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: string(errs.KindInternal)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// session resolves the session named by the request header.
func (mr *MarketplaceRouter) session(r *http.Request) (*session.Session, error) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return nil, errs.Unauthenticated("missing " + SessionHeader + " header")
	}
	return mr.sessions.Get(id)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindCapacityExceeded, errs.KindStale:
		return http.StatusConflict
	case errs.KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (mr *MarketplaceRouter) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	body := errorBody{Error: errs.Message(err), Kind: string(kind)}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Field = e.Field
	}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
		body.Error = "internal error"
	} else {
		hlog.FromRequest(r).Debug().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	}

	respondWithJSON(w, status, body)
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.KindValidation, "request body is not valid JSON for this endpoint", err)
	}
	return nil
}

func (mr *MarketplaceRouter) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
