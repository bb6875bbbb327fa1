package domain

import "time"

type Condition string

const (
	ConditionBrandNew   Condition = "Brand New"
	ConditionLikeNew    Condition = "Like New"
	ConditionGood       Condition = "Good"
	ConditionAcceptable Condition = "Acceptable"
	ConditionWorn       Condition = "Worn"
	ConditionDamaged    Condition = "Damaged"
)

// ValidCondition reports whether c is one of the known condition values.
func ValidCondition(c Condition) bool {
	switch c {
	case ConditionBrandNew, ConditionLikeNew, ConditionGood, ConditionAcceptable, ConditionWorn, ConditionDamaged:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	OrderPlaced   DeliveryStatus = "ORDER_PLACED"
	ItemCollected DeliveryStatus = "ITEM_COLLECTED"
	Delivered     DeliveryStatus = "DELIVERED"
)

// NextDeliveryStatus reports whether to is the immediate successor of from.
// The delivery lifecycle only moves forward.
func NextDeliveryStatus(from, to DeliveryStatus) bool {
	switch from {
	case OrderPlaced:
		return to == ItemCollected
	case ItemCollected:
		return to == Delivered
	}
	return false
}

// DeliveryFee is charged on every order, in the same unit as book prices.
const DeliveryFee = 19

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Condition Condition `json:"condition"`
	Price     float64   `json:"price"`
	ImageKey  string    `json:"-"`
	ListedBy  string    `json:"listedBy"`
	Ordered   bool      `json:"isOrdered"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Conversation struct {
	ID              string    `json:"id"`
	BookID          string    `json:"bookId"`
	ParticipantLow  string    `json:"-"`
	ParticipantHigh string    `json:"-"`
	LastMessageText string    `json:"lastMessage"`
	LastSenderID    string    `json:"lastSender,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Participants returns the participant pair in storage order.
func (c Conversation) Participants() [2]string {
	return [2]string{c.ParticipantLow, c.ParticipantHigh}
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.ParticipantLow || userID == c.ParticipantHigh)
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	Seq            uint64    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Order struct {
	ID             string         `json:"id"`
	BookID         string         `json:"bookId"`
	BuyerID        string         `json:"buyerId"`
	SellerID       string         `json:"sellerId"`
	Price          float64        `json:"price"`
	DeliveryFee    float64        `json:"deliveryFee"`
	Total          float64        `json:"total"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	BookSnapshot   BookSnapshot   `json:"bookSnapshot"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// BookSnapshot freezes the listing fields shown on an order at the time it
// was placed, so later edits to the book never change the order's record.
type BookSnapshot struct {
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Condition Condition `json:"condition"`
	ImageKey  string    `json:"imageKey,omitempty"`
}

type WishlistItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	CreatedAt time.Time `json:"createdAt"`
}
