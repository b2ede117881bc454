package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kiseto/order-intake/internal/domain/catalog"
	"github.com/kiseto/order-intake/internal/session"
)

type productResponse struct {
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Kind         string          `json:"kind"`
	Sizes        []string        `json:"sizes,omitempty"`
	WaistOptions []int           `json:"waistOptions,omitempty"`
}

type catalogResponse struct {
	Products    []productResponse `json:"products"`
	MaxQuantity int               `json:"maxQuantity"`
}

func kindName(k catalog.Kind) string {
	if k == catalog.KindTrousers {
		return "trousers"
	}
	return "simple"
}

// listCatalog returns the fixed product catalog in display order.
func (h *Handler) listCatalog(w http.ResponseWriter, _ *http.Request) {
	products := h.catalog.Products()
	resp := catalogResponse{
		Products:    make([]productResponse, len(products)),
		MaxQuantity: catalog.MaxQuantity,
	}
	for i, p := range products {
		resp.Products[i] = productResponse{
			Key:          p.Key,
			Label:        p.Label,
			UnitPrice:    p.UnitPrice,
			Kind:         kindName(p.Kind),
			Sizes:        p.Sizes,
			WaistOptions: p.WaistOptions,
		}
	}
	respond(w, http.StatusOK, resp)
}

// submitOrder validates the submitted form and advances input to confirm.
func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var form session.InputForm
	if err := decode(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Message: "malformed request body"})
		return
	}

	if err := s.Submit(form); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.Confirmation()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, stateResponse{Phase: session.PhaseConfirm, Confirmation: view})
}

// editOrder returns confirm to input with every confirmed field restored.
func (h *Handler) editOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	form, err := s.Edit()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, stateResponse{Phase: session.PhaseInput, Form: &form})
}

type commitResponse struct {
	Phase   session.Phase `json:"phase"`
	OrderID int64         `json:"orderId"`
}

// commitOrder persists the confirmed order exactly once and reports the
// assigned receipt identifier. A store failure keeps the session in confirm
// so the user can retry.
func (h *Handler) commitOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	id, err := s.Commit(r.Context(), h.orders)
	if err != nil {
		var phaseErr *session.WrongPhaseError
		if errors.As(err, &phaseErr) || errors.Is(err, session.ErrCommitInFlight) {
			writeError(w, r, err)
			return
		}
		zctx.From(r.Context()).Error("commit order", zap.Error(err))
		respondError(w, http.StatusBadGateway, errorResponse{
			Message: "order store unavailable, please retry",
			Phase:   session.PhaseConfirm,
		})
		return
	}

	respond(w, http.StatusOK, commitResponse{Phase: session.PhaseComplete, OrderID: id})
}

// newOrder starts the next order for the same signed-in user.
func (h *Handler) newOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := s.NewOrder(); err != nil {
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
