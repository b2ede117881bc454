package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/kiseto/order-intake/internal/domain/order"
)

type lookupRequest struct {
	PostalCode string `json:"postalCode"`
}

type lookupResponse struct {
	Found      bool   `json:"found"`
	PostalCode string `json:"postalCode"`
	Address    string `json:"address,omitempty"`
}

// lookupAddress resolves a postal code to an address and pre-fills the
// session's input form. An unknown code is not an error: the response carries
// found=false and the user types the address by hand.
func (h *Handler) lookupAddress(w http.ResponseWriter, r *http.Request) {
	s, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req lookupRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Message: "malformed request body"})
		return
	}

	code := order.NormalizePostalCode(req.PostalCode)
	if len(code) != 7 {
		respondError(w, http.StatusUnprocessableEntity, errorResponse{
			Message: "postal code must contain exactly 7 digits",
			Failures: []order.Failure{{
				Field:   "postalCode",
				Code:    order.InvalidPostalCode,
				Message: "postal code must contain exactly 7 digits",
			}},
		})
		return
	}

	res, err := h.resolver.Resolve(r.Context(), code)
	if err != nil {
		zctx.From(r.Context()).Warn("address lookup", zap.String("postal_code", code), zap.Error(err))
		respondError(w, http.StatusBadGateway, errorResponse{
			Message: "address lookup unavailable, enter the address manually",
		})
		return
	}

	if err := s.ApplyLookup(code, res.Address); err != nil {
		writeError(w, r, err)
		return
	}

	respond(w, http.StatusOK, lookupResponse{
		Found:      res.Found,
		PostalCode: code,
		Address:    res.Address,
	})
}
