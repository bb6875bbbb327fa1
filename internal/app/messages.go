package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
)

const messageMaxBytes = 4 << 10

// messageCreatedFrame is the realtime event fanned out to a conversation
// room when a message is persisted.
type messageCreatedFrame struct {
	Type    string             `json:"type"`
	Message domain.MessageView `json:"message"`
}

// SendMessage appends a message to a conversation the sender participates in
// and fans the event out to the conversation's realtime room. The store
// updates the conversation preview in the same transaction as the append.
func (a *App) SendMessage(conversationID, senderID, text string) (domain.MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.MessageView{}, ErrEmptyMessage
	}
	if len(text) > messageMaxBytes {
		return domain.MessageView{}, ErrMessageTooLong
	}
	if err := a.requireParticipant(conversationID, senderID); err != nil {
		return domain.MessageView{}, err
	}
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	msg, err := a.store.AppendMessage(msg)
	if err != nil {
		return domain.MessageView{}, fmt.Errorf("append message: %w", err)
	}
	view := a.messageView(msg)
	a.publishMessageCreated(view)
	return view, nil
}

// ListMessages returns a conversation's messages in send order.
func (a *App) ListMessages(conversationID, requesterID string) ([]domain.MessageView, error) {
	if err := a.requireParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}
	msgs, err := a.store.ListMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	views := make([]domain.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		views = append(views, a.messageView(msg))
	}
	return views, nil
}

func (a *App) publishMessageCreated(view domain.MessageView) {
	if a.relay == nil {
		return
	}
	payload, err := json.Marshal(messageCreatedFrame{Type: "message-created", Message: view})
	if err != nil {
		slog.Warn("message frame marshal failed", "message_id", view.ID, "err", err)
		return
	}
	a.relay.Broadcast(view.ConversationID, payload, "")
}

func (a *App) messageView(msg domain.Message) domain.MessageView {
	view := domain.MessageView{Message: msg}
	if sender, ok, err := a.store.GetUserByID(msg.SenderID); err == nil && ok {
		view.SenderUsername = sender.Username
	}
	return view
}
