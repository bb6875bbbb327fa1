package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
)

// GetOrCreateConversation opens the single buyer/seller conversation for a
// listing. Calling it again for the same book and pair returns the existing
// conversation; concurrent first calls converge on one row.
func (a *App) GetOrCreateConversation(ctx context.Context, bookID, requesterID string) (domain.ConversationView, bool, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.ConversationView{}, false, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.ConversationView{}, false, ErrBookNotFound
	}
	if book.ListedBy == requesterID {
		return domain.ConversationView{}, false, ErrOwnListingChat
	}
	low, high := orderPair(requesterID, book.ListedBy)
	now := time.Now().UTC()
	candidate := domain.Conversation{
		ID:              util.NewID(),
		BookID:          book.ID,
		ParticipantLow:  low,
		ParticipantHigh: high,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	conv, created, err := a.store.GetOrCreateConversation(candidate)
	if err != nil {
		return domain.ConversationView{}, false, fmt.Errorf("get or create conversation: %w", err)
	}
	view, err := a.conversationView(ctx, conv, book)
	if err != nil {
		return domain.ConversationView{}, false, err
	}
	return view, created, nil
}

// ListConversations returns the requester's conversations, most recently
// active first, with books and participants resolved. The preview is read
// from the message log; the denormalized copy on the conversation row covers
// the case where the log read finds nothing.
func (a *App) ListConversations(ctx context.Context, requesterID string) ([]domain.ConversationView, error) {
	convs, err := a.store.ListConversationsByUser(requesterID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	views := make([]domain.ConversationView, 0, len(convs))
	for _, conv := range convs {
		last, ok, err := a.store.LatestMessage(conv.ID)
		if err != nil {
			return nil, fmt.Errorf("load latest message: %w", err)
		}
		if ok {
			conv.LastMessageText = last.Text
			conv.LastSenderID = last.SenderID
		}
		book, _, err := a.store.GetBook(conv.BookID)
		if err != nil {
			return nil, fmt.Errorf("load book: %w", err)
		}
		view, err := a.conversationView(ctx, conv, book)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetConversation returns one conversation the requester participates in.
func (a *App) GetConversation(ctx context.Context, id, requesterID string) (domain.ConversationView, error) {
	conv, err := a.ensureParticipant(id, requesterID)
	if err != nil {
		return domain.ConversationView{}, err
	}
	book, _, err := a.store.GetBook(conv.BookID)
	if err != nil {
		return domain.ConversationView{}, fmt.Errorf("load book: %w", err)
	}
	return a.conversationView(ctx, conv, book)
}

// DeleteConversation removes a conversation and its messages. Participants
// and admins only.
func (a *App) DeleteConversation(ctx context.Context, id string, actor domain.User) error {
	conv, ok, err := a.store.GetConversation(id)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return ErrConversationNotFound
	}
	if !conv.HasParticipant(actor.ID) && !actor.Admin {
		return ErrNotParticipant
	}
	if err := a.store.DeleteConversation(id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// ensureParticipant loads the conversation and rejects callers who are not
// one of its two participants.
func (a *App) ensureParticipant(conversationID, userID string) (domain.Conversation, error) {
	conv, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return domain.Conversation{}, ErrNotParticipant
	}
	return conv, nil
}

// requireParticipant authorizes userID against the conversation using only
// the participant-pair load. Message operations go through here so they never
// pull the full conversation row.
func (a *App) requireParticipant(conversationID, userID string) error {
	pair, ok, err := a.store.GetConversationParticipants(conversationID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	if !ok {
		return ErrConversationNotFound
	}
	if pair[0] != userID && pair[1] != userID {
		return ErrNotParticipant
	}
	return nil
}

// IsParticipant reports whether userID may join the conversation's realtime
// room. Used by the websocket layer before a join.
func (a *App) IsParticipant(conversationID, userID string) (bool, error) {
	switch err := a.requireParticipant(conversationID, userID); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrNotParticipant):
		return false, nil
	default:
		return false, err
	}
}

func (a *App) conversationView(ctx context.Context, conv domain.Conversation, book domain.Book) (domain.ConversationView, error) {
	pair := conv.Participants()
	users, err := a.store.GetUsersByIDs(pair[:])
	if err != nil {
		return domain.ConversationView{}, fmt.Errorf("load participants: %w", err)
	}
	participants := make([]domain.UserRef, 0, 2)
	for _, id := range pair {
		if u, ok := users[id]; ok {
			participants = append(participants, domain.UserRef{ID: u.ID, Username: u.Username})
		}
	}
	return domain.ConversationView{
		Conversation: conv,
		Book:         a.bookSummary(ctx, book),
		Participants: participants,
	}, nil
}

func orderPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
