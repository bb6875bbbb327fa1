package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"bookmarket/internal/relay"
	"bookmarket/internal/util"
	"bookmarket/pkg/auth"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the frontend origin; session auth
	// happens before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, claims auth.SessionClaims) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime relay not available")
		return
	}
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := relay.NewConnection(claims.UserID, ws)
	s.hub.Attach(conn)
	logger := util.LoggerFromContext(r.Context())
	logger.Info("ws session opened", "user_id", claims.UserID, "session_id", conn.ID)

	defer func() {
		s.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session ended")
		logger.Info("ws session closed", "user_id", claims.UserID, "session_id", conn.ID)
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.sendAck(conn, ackFrame{Type: "error", Message: "invalid frame"})
			continue
		}
		s.handleFrame(conn, claims, frame)
	}
}

func (s *Server) handleFrame(conn *relay.Connection, claims auth.SessionClaims, frame inboundFrame) {
	conversationID := strings.TrimSpace(frame.ConversationID)
	switch frame.Type {
	case "join":
		if conversationID == "" {
			s.sendAck(conn, ackFrame{Type: "error", Message: "conversationId is required"})
			return
		}
		ok, err := s.app.IsParticipant(conversationID, claims.UserID)
		if err != nil {
			s.sendAck(conn, ackFrame{Type: "error", ConversationID: conversationID, Message: "internal error"})
			return
		}
		if !ok {
			s.sendAck(conn, ackFrame{Type: "error", ConversationID: conversationID, Message: "not a participant"})
			return
		}
		s.hub.Join(conversationID, conn)
		s.sendAck(conn, ackFrame{Type: "joined", ConversationID: conversationID})
	case "leave":
		if conversationID == "" {
			s.sendAck(conn, ackFrame{Type: "error", Message: "conversationId is required"})
			return
		}
		s.hub.Leave(conversationID, conn)
		s.sendAck(conn, ackFrame{Type: "left", ConversationID: conversationID})
	default:
		s.sendAck(conn, ackFrame{Type: "error", Message: "unknown frame type"})
	}
}

func (s *Server) sendAck(conn *relay.Connection, frame ackFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}
