package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookmarket/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&BookModel{},
		&ConversationModel{},
		&MessageModel{},
		&OrderModel{},
		&WishlistModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "password_hash", "admin", "updated_at"}),
	}).Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUsersByIDs returns users keyed by ID. Missing IDs are simply absent.
func (s *GormStore) GetUsersByIDs(ids []string) (map[string]domain.User, error) {
	res := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	var models []UserModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		res[m.ID] = userFromModel(m)
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int64, error) {
	var count int64
	err := s.db.Model(&UserModel{}).Count(&count).Error
	return count, err
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "genre", "condition", "price", "image_key", "updated_at"}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns catalog books matching the filter, newest first.
func (s *GormStore) ListBooks(filter BookFilter) ([]domain.Book, error) {
	tx := s.db.Model(&BookModel{})
	if filter.Title != "" {
		tx = tx.Where("title ILIKE ?", "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		tx = tx.Where("author ILIKE ?", "%"+filter.Author+"%")
	}
	if filter.Genre != "" {
		tx = tx.Where("genre = ?", filter.Genre)
	}
	if filter.Condition != "" {
		tx = tx.Where("condition = ?", string(filter.Condition))
	}
	if filter.MinPrice != nil {
		tx = tx.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		tx = tx.Where("price <= ?", *filter.MaxPrice)
	}
	var models []BookModel
	if err := tx.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// SearchBooks matches query against title or author, case-insensitively.
func (s *GormStore) SearchBooks(query string) ([]domain.Book, error) {
	pattern := "%" + query + "%"
	var models []BookModel
	if err := s.db.
		Where("title ILIKE ? OR author ILIKE ?", pattern, pattern).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// ListGenres returns the distinct genres present in the catalog.
func (s *GormStore) ListGenres() ([]string, error) {
	var genres []string
	if err := s.db.Model(&BookModel{}).Distinct("genre").Order("genre ASC").Pluck("genre", &genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

// ListBooksByOwner returns books filtered by owner, newest first.
func (s *GormStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.Where("listed_by = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return booksFromModels(models), nil
}

// DeleteBook removes a book together with its conversations, their messages,
// and any wishlist entries referencing it.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id IN (?)",
			tx.Model(&ConversationModel{}).Select("id").Where("book_id = ?", id),
		).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ConversationModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&WishlistModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// BookCount returns number of books.
func (s *GormStore) BookCount() (int64, error) {
	var count int64
	err := s.db.Model(&BookModel{}).Count(&count).Error
	return count, err
}

// GetOrCreateConversation returns the conversation for candidate's
// (book, participant pair), creating it when absent. The composite unique
// index resolves concurrent first contacts: the loser's insert is a no-op
// and both callers read back the same row.
func (s *GormStore) GetOrCreateConversation(candidate domain.Conversation) (domain.Conversation, bool, error) {
	existing, ok, err := s.findConversationByPair(candidate.BookID, candidate.ParticipantLow, candidate.ParticipantHigh)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if ok {
		return existing, false, nil
	}
	model := conversationToModel(candidate)
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return domain.Conversation{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the insert race; the winner's row is authoritative.
		existing, ok, err = s.findConversationByPair(candidate.BookID, candidate.ParticipantLow, candidate.ParticipantHigh)
		if err != nil {
			return domain.Conversation{}, false, err
		}
		if !ok {
			return domain.Conversation{}, false, fmt.Errorf("conversation vanished after conflict")
		}
		return existing, false, nil
	}
	return conversationFromModel(model), true, nil
}

func (s *GormStore) findConversationByPair(bookID, low, high string) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.Where("book_id = ? AND participant_low = ? AND participant_high = ?", bookID, low, high).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// GetConversationParticipants loads only the participant pair of a conversation.
func (s *GormStore) GetConversationParticipants(id string) ([2]string, bool, error) {
	var model ConversationModel
	err := s.db.Select("participant_low", "participant_high").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return [2]string{}, false, nil
		}
		return [2]string{}, false, err
	}
	return [2]string{model.ParticipantLow, model.ParticipantHigh}, true, nil
}

// ListConversationsByUser returns the user's conversations, most recently
// updated first.
func (s *GormStore) ListConversationsByUser(userID string) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := s.db.
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// DeleteConversation removes the conversation and its messages in one
// transaction, so a failure never leaves orphaned messages behind.
func (s *GormStore) DeleteConversation(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

// AppendMessage persists msg and refreshes the parent conversation's preview
// in the same transaction: either both land or neither does.
func (s *GormStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	model := messageToModel(msg)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message_text": msg.Text,
				"last_sender_id":    msg.SenderID,
				"updated_at":        msg.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConversationGone
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// ListMessages returns a conversation's messages in commit order.
func (s *GormStore) ListMessages(conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, nil
}

// LatestMessage returns the most recent message of a conversation.
func (s *GormStore) LatestMessage(conversationID string) (domain.Message, bool, error) {
	var model MessageModel
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// CreateOrder flips the book's ordered flag and records the order in one
// transaction. The conditional update arbitrates concurrent buyers: only the
// request that flips the flag gets to create an order.
func (s *GormStore) CreateOrder(order domain.Order) (domain.Order, error) {
	model := orderToModel(order)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BookModel{}).
			Where("id = ? AND ordered = ?", order.BookID, false).
			Update("ordered", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookUnavailable
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromModel(model), nil
}

// GetOrder retrieves an order.
func (s *GormStore) GetOrder(id string) (domain.Order, bool, error) {
	var model OrderModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}
	return orderFromModel(model), true, nil
}

// ListOrdersByBuyer returns the buyer's orders, newest first.
func (s *GormStore) ListOrdersByBuyer(buyerID string) ([]domain.Order, error) {
	return s.listOrders("buyer_id = ?", buyerID)
}

// ListOrders returns every order, newest first.
func (s *GormStore) ListOrders() ([]domain.Order, error) {
	return s.listOrders("")
}

func (s *GormStore) listOrders(cond string, args ...any) ([]domain.Order, error) {
	tx := s.db.Order("created_at DESC")
	if cond != "" {
		tx = tx.Where(cond, args...)
	}
	var models []OrderModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(models))
	for _, model := range models {
		orders = append(orders, orderFromModel(model))
	}
	return orders, nil
}

// TransitionOrderStatus conditionally advances an order's delivery status.
func (s *GormStore) TransitionOrderStatus(id string, from, to domain.DeliveryStatus) (domain.Order, error) {
	res := s.db.Model(&OrderModel{}).
		Where("id = ? AND delivery_status = ?", id, string(from)).
		Updates(map[string]any{
			"delivery_status": string(to),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return domain.Order{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Order{}, ErrStaleTransition
	}
	order, ok, err := s.GetOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, ErrStaleTransition
	}
	return order, nil
}

// OrderCount returns number of orders.
func (s *GormStore) OrderCount() (int64, error) {
	var count int64
	err := s.db.Model(&OrderModel{}).Count(&count).Error
	return count, err
}

// AddWishlistItem records a wishlist entry; duplicates are rejected by the
// (user, book) unique index.
func (s *GormStore) AddWishlistItem(item domain.WishlistItem) error {
	model := wishlistToModel(item)
	err := s.db.Create(&model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// ListWishlistByUser returns the user's wishlist entries, newest first.
func (s *GormStore) ListWishlistByUser(userID string) ([]domain.WishlistItem, error) {
	var models []WishlistModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.WishlistItem, 0, len(models))
	for _, model := range models {
		items = append(items, wishlistFromModel(model))
	}
	return items, nil
}

// RemoveWishlistItem deletes the entry for (user, book) if present.
func (s *GormStore) RemoveWishlistItem(userID, bookID string) error {
	return s.db.Delete(&WishlistModel{}, "user_id = ? AND book_id = ?", userID, bookID).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Admin:        u.Admin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Admin:        m.Admin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Genre:     b.Genre,
		Condition: string(b.Condition),
		Price:     b.Price,
		ImageKey:  b.ImageKey,
		ListedBy:  b.ListedBy,
		Ordered:   b.Ordered,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:        m.ID,
		Title:     m.Title,
		Author:    m.Author,
		Genre:     m.Genre,
		Condition: domain.Condition(m.Condition),
		Price:     m.Price,
		ImageKey:  m.ImageKey,
		ListedBy:  m.ListedBy,
		Ordered:   m.Ordered,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func booksFromModels(models []BookModel) []domain.Book {
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:              c.ID,
		BookID:          c.BookID,
		ParticipantLow:  c.ParticipantLow,
		ParticipantHigh: c.ParticipantHigh,
		LastMessageText: c.LastMessageText,
		LastSenderID:    c.LastSenderID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:              m.ID,
		BookID:          m.BookID,
		ParticipantLow:  m.ParticipantLow,
		ParticipantHigh: m.ParticipantHigh,
		LastMessageText: m.LastMessageText,
		LastSenderID:    m.LastSenderID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
	}
}

func orderToModel(o domain.Order) OrderModel {
	snapshot, _ := json.Marshal(o.BookSnapshot)
	return OrderModel{
		ID:             o.ID,
		BookID:         o.BookID,
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		Price:          o.Price,
		DeliveryFee:    o.DeliveryFee,
		Total:          o.Total,
		DeliveryStatus: string(o.DeliveryStatus),
		BookSnapshot:   snapshot,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func orderFromModel(m OrderModel) domain.Order {
	var snapshot domain.BookSnapshot
	if len(m.BookSnapshot) > 0 {
		_ = json.Unmarshal(m.BookSnapshot, &snapshot)
	}
	return domain.Order{
		ID:             m.ID,
		BookID:         m.BookID,
		BuyerID:        m.BuyerID,
		SellerID:       m.SellerID,
		Price:          m.Price,
		DeliveryFee:    m.DeliveryFee,
		Total:          m.Total,
		DeliveryStatus: domain.DeliveryStatus(m.DeliveryStatus),
		BookSnapshot:   snapshot,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func wishlistToModel(item domain.WishlistItem) WishlistModel {
	return WishlistModel{
		ID:        item.ID,
		UserID:    item.UserID,
		BookID:    item.BookID,
		CreatedAt: item.CreatedAt,
	}
}

func wishlistFromModel(m WishlistModel) domain.WishlistItem {
	return domain.WishlistItem{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		CreatedAt: m.CreatedAt,
	}
}
