package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Admin        bool   `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID        string  `gorm:"primaryKey"`
	Title     string  `gorm:"not null;index"`
	Author    string  `gorm:"not null;index"`
	Genre     string  `gorm:"not null;index"`
	Condition string  `gorm:"not null"`
	Price     float64 `gorm:"not null"`
	ImageKey  string
	ListedBy  string    `gorm:"not null;index"`
	Ordered   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ConversationModel stores the participant pair sorted so that the composite
// unique index makes get-or-create race-free: two concurrent first contacts
// for the same (book, pair) collide on the index instead of both inserting.
type ConversationModel struct {
	ID              string `gorm:"primaryKey"`
	BookID          string `gorm:"not null;uniqueIndex:idx_conversations_book_pair"`
	ParticipantLow  string `gorm:"not null;uniqueIndex:idx_conversations_book_pair;index"`
	ParticipantHigh string `gorm:"not null;uniqueIndex:idx_conversations_book_pair;index"`
	LastMessageText string
	LastSenderID    string
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null;index"`
}

// MessageModel carries a store-assigned Seq that breaks creation-time ties,
// so list order always matches commit order.
type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	SenderID       string    `gorm:"not null"`
	Text           string    `gorm:"type:text;not null"`
	Seq            uint64    `gorm:"autoIncrement;uniqueIndex"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

type OrderModel struct {
	ID             string         `gorm:"primaryKey"`
	BookID         string         `gorm:"not null;index"`
	BuyerID        string         `gorm:"not null;index"`
	SellerID       string         `gorm:"not null;index"`
	Price          float64        `gorm:"not null"`
	DeliveryFee    float64        `gorm:"not null"`
	Total          float64        `gorm:"not null"`
	DeliveryStatus string         `gorm:"not null"`
	BookSnapshot   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

type WishlistModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_wishlist_user_book"`
	BookID    string    `gorm:"not null;uniqueIndex:idx_wishlist_user_book"`
	CreatedAt time.Time `gorm:"not null"`
}
