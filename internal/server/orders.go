package server

import (
	"net/http"

	"bookmarket/pkg/auth"
)

type placeOrderRequest struct {
	BookID string `json:"bookId"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	switch r.Method {
	case http.MethodPost:
		var req placeOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		order, err := s.app.PlaceOrder(r.Context(), req.BookID, claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	case http.MethodGet:
		orders, err := s.app.ListMyOrders(r.Context(), claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": orders,
			"count": len(orders),
		})
	default:
		methodNotAllowed(w)
	}
}
