package domain

// View types carry references resolved once at the API boundary. A raw entity
// holds only ids; a view holds the expanded form. Handlers never guess which
// shape they were given.

// UserRef is the expanded form of a user reference.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// BookSummary is the expanded form of a book reference as embedded in
// conversations, orders, and wishlist entries.
type BookSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Condition Condition `json:"condition"`
	Price     float64   `json:"price"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	ListedBy  string    `json:"listedBy"`
	Ordered   bool      `json:"isOrdered"`
}

// BookView is a listing with its lister resolved.
type BookView struct {
	Book
	ImageURL string  `json:"imageUrl,omitempty"`
	Lister   UserRef `json:"lister"`
}

// ConversationView is a conversation with its book and participants resolved.
type ConversationView struct {
	Conversation
	Book         BookSummary `json:"book"`
	Participants []UserRef   `json:"participants"`
}

// MessageView is a message with its sender's username resolved.
type MessageView struct {
	Message
	SenderUsername string `json:"senderUsername"`
}

// OrderView is an order with its book snapshot and seller resolved.
type OrderView struct {
	Order
	Book   BookSummary `json:"book"`
	Seller UserRef     `json:"seller"`
	Buyer  *UserRef    `json:"buyer,omitempty"`
}

// WishlistView is a wishlist entry with its book resolved.
type WishlistView struct {
	WishlistItem
	Book BookSummary `json:"book"`
}
