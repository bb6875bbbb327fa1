package server

import (
	"net/http"
	"strings"

	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/store"
)

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, _ auth.SessionClaims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks(r.Context(), store.BookFilter{})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// /api/admin/books/{id}
func (s *Server) handleAdminBookByID(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/books/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	actor := domain.User{ID: claims.UserID, Admin: true}
	switch r.Method {
	case http.MethodPut:
		input, cover, err := s.parseBookForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		book, err := s.app.UpdateBook(r.Context(), actor, id, input, cover)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), actor, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminOrders(w http.ResponseWriter, r *http.Request, _ auth.SessionClaims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	orders, err := s.app.ListAllOrders(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": orders,
		"count": len(orders),
	})
}

type orderStatusRequest struct {
	DeliveryStatus string `json:"deliveryStatus"`
}

// /api/admin/orders/{id}/status
func (s *Server) handleAdminOrderByID(w http.ResponseWriter, r *http.Request, _ auth.SessionClaims) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/orders/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" || len(parts) != 2 || parts[1] != "status" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req orderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	status, ok := parseDeliveryStatus(req.DeliveryStatus)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid delivery status")
		return
	}
	order, err := s.app.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAdminAnalytics(w http.ResponseWriter, r *http.Request, _ auth.SessionClaims) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.GetAnalytics()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseDeliveryStatus(raw string) (domain.DeliveryStatus, bool) {
	switch domain.DeliveryStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case domain.OrderPlaced:
		return domain.OrderPlaced, true
	case domain.ItemCollected:
		return domain.ItemCollected, true
	case domain.Delivered:
		return domain.Delivered, true
	default:
		return "", false
	}
}
