// Package handler exposes the order intake session over HTTP. Every route
// operates on the session identified by the order_session cookie; phase
// violations map to 409, validation failures to 422.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/kiseto/order-intake/internal/domain/catalog"
	"github.com/kiseto/order-intake/internal/domain/order"
	"github.com/kiseto/order-intake/internal/session"
	"github.com/kiseto/order-intake/internal/zipcloud"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "order_session"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SecureCookie marks the session cookie Secure. Disable only for
	// plain-HTTP local development.
	SecureCookie bool
}

// Handler serves the order intake API, delegating state transitions to the
// session package and persistence to the order repository.
type Handler struct {
	sessions *session.Manager
	catalog  *catalog.Catalog
	resolver zipcloud.Resolver
	orders   order.Repository
	secure   bool
}

// New constructs a Handler with the required dependencies.
func New(cfg Config, sessions *session.Manager, c *catalog.Catalog, resolver zipcloud.Resolver, orders order.Repository) *Handler {
	return &Handler{
		sessions: sessions,
		catalog:  c,
		resolver: resolver,
		orders:   orders,
		secure:   cfg.SecureCookie,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/catalog", h.listCatalog)
	mux.HandleFunc("GET /api/session", h.sessionState)
	mux.HandleFunc("POST /api/address/lookup", h.lookupAddress)
	mux.HandleFunc("POST /api/order", h.submitOrder)
	mux.HandleFunc("POST /api/order/edit", h.editOrder)
	mux.HandleFunc("POST /api/order/commit", h.commitOrder)
	mux.HandleFunc("POST /api/order/new", h.newOrder)
	return mux
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Phase    session.Phase   `json:"phase,omitempty"`
	Failures []order.Failure `json:"failures,omitempty"`
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, resp errorResponse) {
	resp.Code = status
	respond(w, status, resp)
}

// writeError maps domain and session errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		phaseErr      *session.WrongPhaseError
		validationErr *order.ValidationError
		quantityErr   *session.QuantityRangeError
	)
	switch {
	case errors.As(err, &phaseErr):
		respondError(w, http.StatusConflict, errorResponse{
			Message: phaseErr.Error(),
			Phase:   phaseErr.Current,
		})
	case errors.As(err, &validationErr):
		respondError(w, http.StatusUnprocessableEntity, errorResponse{
			Message:  "validation failed",
			Failures: validationErr.Failures,
		})
	case errors.As(err, &quantityErr):
		respondError(w, http.StatusUnprocessableEntity, errorResponse{
			Message: quantityErr.Error(),
		})
	case errors.Is(err, catalog.ErrUnknownProduct):
		respondError(w, http.StatusBadRequest, errorResponse{
			Message: err.Error(),
		})
	case errors.Is(err, session.ErrBadCredentials):
		respondError(w, http.StatusUnauthorized, errorResponse{
			Message: session.ErrBadCredentials.Error(),
		})
	case errors.Is(err, session.ErrCommitInFlight):
		respondError(w, http.StatusConflict, errorResponse{
			Message: session.ErrCommitInFlight.Error(),
		})
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errorResponse{
			Message: "internal error",
		})
	}
}

func decode(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func (h *Handler) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ensureSession returns the request's session, creating a fresh one when the
// cookie is absent or names an expired session.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if s, ok := h.sessions.Get(c.Value); ok {
			return s
		}
	}
	s := h.sessions.Create()
	h.setCookie(w, s.ID())
	return s
}

// requireSession returns the request's session or writes a 401 when no live
// session exists.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		respondError(w, http.StatusUnauthorized, errorResponse{Message: "no active session"})
		return nil, false
	}
	s, ok := h.sessions.Get(c.Value)
	if !ok {
		respondError(w, http.StatusUnauthorized, errorResponse{Message: "session expired"})
		return nil, false
	}
	return s, true
}
