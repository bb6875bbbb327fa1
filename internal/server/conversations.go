package server

import (
	"net/http"
	"strings"

	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
)

type createConversationRequest struct {
	BookID string `json:"bookId"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	switch r.Method {
	case http.MethodPost:
		var req createConversationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		conv, created, err := s.app.GetOrCreateConversation(r.Context(), req.BookID, claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, conv)
	case http.MethodGet:
		convs, err := s.app.ListConversations(r.Context(), claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": convs,
			"count": len(convs),
		})
	default:
		methodNotAllowed(w)
	}
}

// /api/conversations/{id} and /api/conversations/{id}/messages
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	path := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "messages" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.handleMessages(w, r, claims, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		conv, err := s.app.GetConversation(r.Context(), id, claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	case http.MethodDelete:
		actor := domain.User{ID: claims.UserID, Admin: claims.Admin}
		if err := s.app.DeleteConversation(r.Context(), id, actor); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "conversation deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims, conversationID string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.ListMessages(conversationID, claims.UserID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": msgs,
			"count": len(msgs),
		})
	case http.MethodPost:
		var req sendMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		msg, err := s.app.SendMessage(conversationID, claims.UserID, req.Text)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w)
	}
}
