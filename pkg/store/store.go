package store

import (
	"errors"

	"bookmarket/pkg/domain"
)

var (
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	// (wishlist pairs, user emails).
	ErrDuplicate = errors.New("duplicate record")

	// ErrBookUnavailable is returned when an order loses the race for a book
	// that was ordered (or deleted) between read and write.
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrConversationGone is returned when a message append finds its parent
	// conversation deleted.
	ErrConversationGone = errors.New("conversation gone")

	// ErrStaleTransition is returned when an order status update does not
	// match the order's current status.
	ErrStaleTransition = errors.New("stale status transition")
)

// BookFilter narrows catalog listings. Zero fields are ignored.
type BookFilter struct {
	Title     string
	Author    string
	Genre     string
	Condition domain.Condition
	MinPrice  *float64
	MaxPrice  *float64
}

// Store defines persistence operations for users, books, conversations,
// messages, orders, and wishlists.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	GetUsersByIDs(ids []string) (map[string]domain.User, error)
	UserCount() (int64, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks(BookFilter) ([]domain.Book, error)
	SearchBooks(query string) ([]domain.Book, error)
	ListGenres() ([]string, error)
	ListBooksByOwner(ownerID string) ([]domain.Book, error)
	DeleteBook(id string) error
	BookCount() (int64, error)

	// conversations
	// GetOrCreateConversation persists candidate unless a conversation for
	// the same (book, participant pair) already exists; the uniqueness is
	// enforced by the storage layer, not by a check-then-act in callers.
	// The returned bool reports whether a new conversation was created.
	GetOrCreateConversation(candidate domain.Conversation) (domain.Conversation, bool, error)
	GetConversation(id string) (domain.Conversation, bool, error)
	// GetConversationParticipants loads only the participant pair.
	GetConversationParticipants(id string) ([2]string, bool, error)
	ListConversationsByUser(userID string) ([]domain.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages
	// as one atomic unit.
	DeleteConversation(id string) error

	// messages
	// AppendMessage persists msg and updates the parent conversation's
	// last-message preview as one atomic unit. The returned message carries
	// the store-assigned sequence number.
	AppendMessage(msg domain.Message) (domain.Message, error)
	ListMessages(conversationID string) ([]domain.Message, error)
	LatestMessage(conversationID string) (domain.Message, bool, error)

	// orders
	// CreateOrder persists the order and flips the book's ordered flag in
	// one atomic unit; it fails with ErrBookUnavailable when the flag was
	// already set by a concurrent buyer.
	CreateOrder(order domain.Order) (domain.Order, error)
	GetOrder(id string) (domain.Order, bool, error)
	ListOrdersByBuyer(buyerID string) ([]domain.Order, error)
	ListOrders() ([]domain.Order, error)
	// TransitionOrderStatus moves an order from one delivery status to the
	// next, conditionally on the current status still matching from.
	TransitionOrderStatus(id string, from, to domain.DeliveryStatus) (domain.Order, error)
	OrderCount() (int64, error)

	// wishlist
	AddWishlistItem(domain.WishlistItem) error
	ListWishlistByUser(userID string) ([]domain.WishlistItem, error)
	RemoveWishlistItem(userID, bookID string) error
}
