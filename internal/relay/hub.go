package relay

import (
	"sync"
)

// Hub coordinates websocket sessions and conversation rooms. A user may hold
// several concurrent connections (one per tab); all of them receive room
// broadcasts individually.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // sessionID -> connection
	userSessions map[string]map[string]*Connection // userID -> sessionID -> connection
	rooms        map[string]map[string]*Connection // conversationID -> sessionID -> connection
	sessionRooms map[string]map[string]struct{}    // sessionID -> set of conversationIDs
}

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]map[string]*Connection),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a connection and starts its write loop. Existing sessions
// of the same user stay attached.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	userConns := h.userSessions[conn.UserID]
	if userConns == nil {
		userConns = make(map[string]*Connection)
		h.userSessions[conn.UserID] = userConns
	}
	userConns[conn.ID] = conn
	h.sessionRooms[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and its room memberships if still tracked.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Join adds the connection to the conversation room.
func (h *Hub) Join(conversationID string, conn *Connection) {
	h.mu.Lock()
	if _, ok := h.sessions[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}

	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[conversationID] = room
	}
	room[conn.ID] = conn

	memberships := h.sessionRooms[conn.ID]
	if memberships == nil {
		memberships = make(map[string]struct{})
		h.sessionRooms[conn.ID] = memberships
	}
	memberships[conversationID] = struct{}{}
	h.mu.Unlock()
}

// Leave removes the connection from the conversation room.
func (h *Hub) Leave(conversationID string, conn *Connection) {
	h.mu.Lock()
	h.leaveLocked(conversationID, conn.ID)
	h.mu.Unlock()
}

// Broadcast writes payload to all members of the conversation room.
// excludeSessionID, when non-empty, skips that one connection so the sender's
// own tab does not see its message twice.
func (h *Hub) Broadcast(conversationID string, payload []byte, excludeSessionID string) int {
	h.mu.RLock()
	room := h.rooms[conversationID]
	if len(room) == 0 {
		h.mu.RUnlock()
		return 0
	}

	delivered := 0
	for _, conn := range room {
		if excludeSessionID != "" && conn.ID == excludeSessionID {
			continue
		}
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	h.mu.RUnlock()
	return delivered
}

// NotifyUser delivers payload to every open connection of the given user.
func (h *Hub) NotifyUser(userID string, payload []byte) int {
	h.mu.RLock()
	userConns := h.userSessions[userID]
	conns := make([]*Connection, 0, len(userConns))
	for _, conn := range userConns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.userSessions = make(map[string]map[string]*Connection)
	h.rooms = make(map[string]map[string]*Connection)
	h.sessionRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) detachLocked(sessionID string) {
	conn, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)

	if userConns, ok := h.userSessions[conn.UserID]; ok {
		delete(userConns, sessionID)
		if len(userConns) == 0 {
			delete(h.userSessions, conn.UserID)
		}
	}

	for roomID := range h.sessionRooms[sessionID] {
		h.leaveLocked(roomID, sessionID)
	}
	delete(h.sessionRooms, sessionID)
}

func (h *Hub) leaveLocked(conversationID string, sessionID string) {
	if sessionID == "" {
		return
	}
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, conversationID)
		if len(memberships) == 0 {
			delete(h.sessionRooms, sessionID)
		}
	}
}
