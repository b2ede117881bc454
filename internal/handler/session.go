package handler

import (
	"net/http"

	"github.com/kiseto/order-intake/internal/session"
)

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// stateResponse describes the session to the client. Exactly one of the
// phase-specific fields is set, matching Phase.
type stateResponse struct {
	Phase        session.Phase        `json:"phase"`
	Form         *session.InputForm   `json:"form,omitempty"`
	Confirmation *session.ConfirmView `json:"confirmation,omitempty"`
	OrderID      int64                `json:"orderId,omitempty"`
}

// login authenticates the session and advances it to the input phase. A
// session is created on demand so login is always the first usable call.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Message: "malformed request body"})
		return
	}

	s := h.ensureSession(w, r)
	if err := s.Login(req.UserID, req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	form, err := s.Form()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, stateResponse{Phase: session.PhaseInput, Form: &form})
}

// logout drops the session and clears the cookie. Any in-progress draft is
// discarded.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.sessions.Drop(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// sessionState reports the session's phase and the data that phase renders.
func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request) {
	s := h.ensureSession(w, r)

	resp := stateResponse{Phase: s.Phase()}
	switch resp.Phase {
	case session.PhaseInput:
		if form, err := s.Form(); err == nil {
			resp.Form = &form
		}
	case session.PhaseConfirm:
		if view, err := s.Confirmation(); err == nil {
			resp.Confirmation = view
		}
	case session.PhaseComplete:
		if id, err := s.OrderID(); err == nil {
			resp.OrderID = id
		}
	}
	respond(w, http.StatusOK, resp)
}
