package server

import (
	"net/http"
	"strings"

	"bookmarket/pkg/auth"
)

type wishlistRequest struct {
	BookID string `json:"bookId"`
}

func (s *Server) handleWishlist(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	switch r.Method {
	case http.MethodPost:
		var req wishlistRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		item, err := s.app.AddToWishlist(r.Context(), claims.UserID, req.BookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	case http.MethodGet:
		items, err := s.app.ListWishlist(r.Context(), claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	default:
		methodNotAllowed(w)
	}
}

// /api/wishlist/{bookId}
func (s *Server) handleWishlistByBook(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	bookID := strings.TrimPrefix(r.URL.Path, "/api/wishlist/")
	if bookID == "" || strings.Contains(bookID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.app.RemoveFromWishlist(claims.UserID, bookID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "removed from wishlist"})
}
