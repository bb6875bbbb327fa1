package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"bookmarket/pkg/domain"
)

// MemoryStore keeps all records in-process. It implements the same atomicity
// contracts as GormStore under a single mutex, which makes it a faithful
// stand-in for tests and local runs without Postgres.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	email         map[string]string // email -> user ID
	books         map[string]domain.Book
	bookOrder     []string
	conversations map[string]domain.Conversation
	convoByPair   map[string]string // bookID|low|high -> conversation ID
	messages      map[string][]domain.Message
	nextSeq       uint64
	orders        map[string]domain.Order
	orderList     []string
	wishlist      map[string]domain.WishlistItem // userID|bookID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		email:         make(map[string]string),
		books:         make(map[string]domain.Book),
		conversations: make(map[string]domain.Conversation),
		convoByPair:   make(map[string]string),
		messages:      make(map[string][]domain.Message),
		orders:        make(map[string]domain.Order),
		wishlist:      make(map[string]domain.WishlistItem),
	}
}

func pairKey(bookID, low, high string) string {
	return bookID + "|" + low + "|" + high
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existingID, ok := m.email[u.Email]; ok && existingID != u.ID {
		return ErrDuplicate
	}
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUsersByIDs returns users keyed by ID.
func (m *MemoryStore) GetUsersByIDs(ids []string) (map[string]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			res[id] = u
		}
	}
	return res, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// SaveBook stores or updates a book, preserving insertion order for listings.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.books[b.ID]; ok {
		// Edits never touch the ordered flag or owner.
		b.Ordered = existing.Ordered
		b.ListedBy = existing.ListedBy
	} else {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	return b, ok, nil
}

func (m *MemoryStore) booksNewestFirst() []domain.Book {
	res := make([]domain.Book, 0, len(m.bookOrder))
	for i := len(m.bookOrder) - 1; i >= 0; i-- {
		if b, ok := m.books[m.bookOrder[i]]; ok {
			res = append(res, b)
		}
	}
	return res
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ListBooks returns books matching the filter, newest first.
func (m *MemoryStore) ListBooks(filter BookFilter) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Book, 0)
	for _, b := range m.booksNewestFirst() {
		if filter.Title != "" && !containsFold(b.Title, filter.Title) {
			continue
		}
		if filter.Author != "" && !containsFold(b.Author, filter.Author) {
			continue
		}
		if filter.Genre != "" && b.Genre != filter.Genre {
			continue
		}
		if filter.Condition != "" && b.Condition != filter.Condition {
			continue
		}
		if filter.MinPrice != nil && b.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && b.Price > *filter.MaxPrice {
			continue
		}
		res = append(res, b)
	}
	return res, nil
}

// SearchBooks matches query against title or author.
func (m *MemoryStore) SearchBooks(query string) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Book, 0)
	for _, b := range m.booksNewestFirst() {
		if containsFold(b.Title, query) || containsFold(b.Author, query) {
			res = append(res, b)
		}
	}
	return res, nil
}

// ListGenres returns distinct genres, sorted.
func (m *MemoryStore) ListGenres() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	genres := make([]string, 0)
	for _, b := range m.books {
		if _, ok := seen[b.Genre]; ok {
			continue
		}
		seen[b.Genre] = struct{}{}
		genres = append(genres, b.Genre)
	}
	sort.Strings(genres)
	return genres, nil
}

// ListBooksByOwner returns books filtered by owner, newest first.
func (m *MemoryStore) ListBooksByOwner(ownerID string) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Book, 0)
	for _, b := range m.booksNewestFirst() {
		if b.ListedBy == ownerID {
			res = append(res, b)
		}
	}
	return res, nil
}

// DeleteBook removes a book with its conversations, messages, and wishlist
// entries.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	for convoID, convo := range m.conversations {
		if convo.BookID != id {
			continue
		}
		delete(m.conversations, convoID)
		delete(m.convoByPair, pairKey(convo.BookID, convo.ParticipantLow, convo.ParticipantHigh))
		delete(m.messages, convoID)
	}
	for key, item := range m.wishlist {
		if item.BookID == id {
			delete(m.wishlist, key)
		}
	}
	filtered := m.bookOrder[:0]
	for _, bookID := range m.bookOrder {
		if bookID != id {
			filtered = append(filtered, bookID)
		}
	}
	m.bookOrder = filtered
	return nil
}

// BookCount returns number of books.
func (m *MemoryStore) BookCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.books)), nil
}

// GetOrCreateConversation returns the conversation for candidate's
// (book, pair), creating it when absent. The pair index lookup and the
// insert run under one lock, mirroring the unique-index guarantee of the
// Postgres store.
func (m *MemoryStore) GetOrCreateConversation(candidate domain.Conversation) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(candidate.BookID, candidate.ParticipantLow, candidate.ParticipantHigh)
	if id, ok := m.convoByPair[key]; ok {
		return m.conversations[id], false, nil
	}
	m.conversations[candidate.ID] = candidate
	m.convoByPair[key] = candidate.ID
	return candidate, true, nil
}

// GetConversation returns one conversation by ID.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

// GetConversationParticipants loads only the participant pair.
func (m *MemoryStore) GetConversationParticipants(id string) ([2]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return [2]string{}, false, nil
	}
	return c.Participants(), true, nil
}

// ListConversationsByUser returns the user's conversations, most recently
// updated first.
func (m *MemoryStore) ListConversationsByUser(userID string) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// DeleteConversation removes the conversation and its messages together.
func (m *MemoryStore) DeleteConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		delete(m.convoByPair, pairKey(c.BookID, c.ParticipantLow, c.ParticipantHigh))
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage persists msg and updates the parent preview atomically.
func (m *MemoryStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	convo, ok := m.conversations[msg.ConversationID]
	if !ok {
		return domain.Message{}, ErrConversationGone
	}
	m.nextSeq++
	msg.Seq = m.nextSeq
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	convo.LastMessageText = msg.Text
	convo.LastSenderID = msg.SenderID
	convo.UpdatedAt = msg.CreatedAt
	m.conversations[msg.ConversationID] = convo
	return msg, nil
}

// ListMessages returns messages in commit order.
func (m *MemoryStore) ListMessages(conversationID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

// LatestMessage returns the most recent message of a conversation.
func (m *MemoryStore) LatestMessage(conversationID string) (domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	if len(msgs) == 0 {
		return domain.Message{}, false, nil
	}
	return msgs[len(msgs)-1], true, nil
}

// CreateOrder flips the book's ordered flag and records the order under one
// lock; the loser of a concurrent double order gets ErrBookUnavailable.
func (m *MemoryStore) CreateOrder(order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[order.BookID]
	if !ok || book.Ordered {
		return domain.Order{}, ErrBookUnavailable
	}
	book.Ordered = true
	book.UpdatedAt = time.Now().UTC()
	m.books[order.BookID] = book
	m.orders[order.ID] = order
	m.orderList = append(m.orderList, order.ID)
	return order, nil
}

// GetOrder retrieves an order.
func (m *MemoryStore) GetOrder(id string) (domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok, nil
}

// ListOrdersByBuyer returns the buyer's orders, newest first.
func (m *MemoryStore) ListOrdersByBuyer(buyerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Order, 0)
	for i := len(m.orderList) - 1; i >= 0; i-- {
		if o, ok := m.orders[m.orderList[i]]; ok && o.BuyerID == buyerID {
			res = append(res, o)
		}
	}
	return res, nil
}

// ListOrders returns every order, newest first.
func (m *MemoryStore) ListOrders() ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.Order, 0, len(m.orderList))
	for i := len(m.orderList) - 1; i >= 0; i-- {
		if o, ok := m.orders[m.orderList[i]]; ok {
			res = append(res, o)
		}
	}
	return res, nil
}

// TransitionOrderStatus conditionally advances an order's delivery status.
func (m *MemoryStore) TransitionOrderStatus(id string, from, to domain.DeliveryStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.DeliveryStatus != from {
		return domain.Order{}, ErrStaleTransition
	}
	o.DeliveryStatus = to
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = o
	return o, nil
}

// OrderCount returns number of orders.
func (m *MemoryStore) OrderCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.orders)), nil
}

// AddWishlistItem records a wishlist entry, rejecting duplicates per
// (user, book) pair.
func (m *MemoryStore) AddWishlistItem(item domain.WishlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := item.UserID + "|" + item.BookID
	if _, ok := m.wishlist[key]; ok {
		return ErrDuplicate
	}
	m.wishlist[key] = item
	return nil
}

// ListWishlistByUser returns the user's wishlist entries, newest first.
func (m *MemoryStore) ListWishlistByUser(userID string) ([]domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.WishlistItem, 0)
	for _, item := range m.wishlist {
		if item.UserID == userID {
			res = append(res, item)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// RemoveWishlistItem deletes the entry for (user, book) if present.
func (m *MemoryStore) RemoveWishlistItem(userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.wishlist, userID+"|"+bookID)
	return nil
}
