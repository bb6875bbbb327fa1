package store

import (
	"sync"
	"testing"
	"time"

	"bookmarket/pkg/domain"
)

func seedUser(t *testing.T, s *MemoryStore, id, username string) {
	t.Helper()
	err := s.SaveUser(domain.User{
		ID:       id,
		Username: username,
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("save user %s: %v", id, err)
	}
}

func seedBook(t *testing.T, s *MemoryStore, id, owner string) domain.Book {
	t.Helper()
	book := domain.Book{
		ID:        id,
		Title:     "Dune",
		Author:    "Herbert",
		Genre:     "Sci-Fi",
		Condition: domain.ConditionGood,
		Price:     80,
		ListedBy:  owner,
	}
	if err := s.SaveBook(book); err != nil {
		t.Fatalf("save book %s: %v", id, err)
	}
	return book
}

func TestGetOrCreateConversationRace(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "seller", "seller")
	seedUser(t, s, "buyer", "buyer")
	seedBook(t, s, "book-1", "seller")

	const callers = 16
	results := make([]domain.Conversation, callers)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, created, err := s.GetOrCreateConversation(domain.Conversation{
				ID:              "cand-" + string(rune('a'+i)),
				BookID:          "book-1",
				ParticipantLow:  "buyer",
				ParticipantHigh: "seller",
			})
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = conv
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("created %d conversations, want exactly 1", createdCount)
	}
	for i := 1; i < callers; i++ {
		if results[i].ID != results[0].ID {
			t.Fatalf("caller %d got %s, caller 0 got %s", i, results[i].ID, results[0].ID)
		}
	}
}

func TestLatestMessage(t *testing.T) {
	s := NewMemoryStore()
	conv, _, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c1", BookID: "book-1", ParticipantLow: "buyer", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	if _, ok, err := s.LatestMessage(conv.ID); err != nil || ok {
		t.Fatalf("empty log = ok %v err %v, want no message", ok, err)
	}

	now := time.Now().UTC()
	for i, text := range []string{"first", "second"} {
		if _, err := s.AppendMessage(domain.Message{
			ID:             "m" + string(rune('1'+i)),
			ConversationID: conv.ID,
			SenderID:       "buyer",
			Text:           text,
			CreatedAt:      now,
		}); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}
	last, ok, err := s.LatestMessage(conv.ID)
	if err != nil || !ok {
		t.Fatalf("latest = ok %v err %v", ok, err)
	}
	if last.Text != "second" || last.SenderID != "buyer" {
		t.Fatalf("latest = %+v", last)
	}
}

func TestGetOrCreateConversationDistinctPairs(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "book-1", "seller")

	first, _, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c1", BookID: "book-1", ParticipantLow: "buyer-a", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, created, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c2", BookID: "book-1", ParticipantLow: "buyer-b", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !created {
		t.Fatal("a different pair should create a new conversation")
	}
	if first.ID == second.ID {
		t.Fatal("distinct pairs must not share a conversation")
	}
}

func TestAppendMessageAssignsSeqAndPreview(t *testing.T) {
	s := NewMemoryStore()
	conv, _, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c1", BookID: "book-1", ParticipantLow: "buyer", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	now := time.Now().UTC()
	var last domain.Message
	for i, text := range []string{"one", "two"} {
		msg, err := s.AppendMessage(domain.Message{
			ID:             "m" + string(rune('1'+i)),
			ConversationID: conv.ID,
			SenderID:       "buyer",
			Text:           text,
			CreatedAt:      now,
		})
		if err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
		if msg.Seq <= last.Seq {
			t.Fatalf("seq %d not after %d", msg.Seq, last.Seq)
		}
		last = msg
	}

	got, ok, err := s.GetConversation(conv.ID)
	if err != nil || !ok {
		t.Fatalf("get conversation: %v", err)
	}
	if got.LastMessageText != "two" || got.LastSenderID != "buyer" {
		t.Fatalf("preview = %q by %q", got.LastMessageText, got.LastSenderID)
	}

	msgs, err := s.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "one" || msgs[1].Text != "two" {
		t.Fatalf("msgs = %+v", msgs)
	}
}

func TestAppendMessageToDeletedConversation(t *testing.T) {
	s := NewMemoryStore()
	conv, _, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c1", BookID: "book-1", ParticipantLow: "buyer", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if err := s.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.AppendMessage(domain.Message{
		ID: "m1", ConversationID: conv.ID, SenderID: "buyer", Text: "hello",
	}); err != ErrConversationGone {
		t.Fatalf("append = %v, want ErrConversationGone", err)
	}
}

func TestCreateOrderSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "book-1", "seller")

	const buyers = 8
	var wg sync.WaitGroup
	won := 0
	lost := 0
	var mu sync.Mutex
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateOrder(domain.Order{
				ID:             "o" + string(rune('1'+i)),
				BookID:         "book-1",
				BuyerID:        "buyer" + string(rune('1'+i)),
				SellerID:       "seller",
				DeliveryStatus: domain.OrderPlaced,
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				won++
			case ErrBookUnavailable:
				lost++
			default:
				t.Errorf("buyer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if won != 1 || lost != buyers-1 {
		t.Fatalf("won=%d lost=%d, want 1/%d", won, lost, buyers-1)
	}
	book, ok, err := s.GetBook("book-1")
	if err != nil || !ok {
		t.Fatalf("get book: %v", err)
	}
	if !book.Ordered {
		t.Fatal("book should be flagged ordered")
	}
}

func TestTransitionOrderStatusGuardsCurrent(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "book-1", "seller")
	if _, err := s.CreateOrder(domain.Order{
		ID: "o1", BookID: "book-1", BuyerID: "buyer", SellerID: "seller",
		DeliveryStatus: domain.OrderPlaced,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := s.TransitionOrderStatus("o1", domain.ItemCollected, domain.Delivered); err != ErrStaleTransition {
		t.Fatalf("stale from = %v, want ErrStaleTransition", err)
	}
	order, err := s.TransitionOrderStatus("o1", domain.OrderPlaced, domain.ItemCollected)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if order.DeliveryStatus != domain.ItemCollected {
		t.Fatalf("status = %q", order.DeliveryStatus)
	}
}

func TestDeleteBookCascade(t *testing.T) {
	s := NewMemoryStore()
	seedBook(t, s, "book-1", "seller")
	conv, _, err := s.GetOrCreateConversation(domain.Conversation{
		ID: "c1", BookID: "book-1", ParticipantLow: "buyer", ParticipantHigh: "seller",
	})
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if _, err := s.AppendMessage(domain.Message{
		ID: "m1", ConversationID: conv.ID, SenderID: "buyer", Text: "hello",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AddWishlistItem(domain.WishlistItem{ID: "w1", UserID: "buyer", BookID: "book-1"}); err != nil {
		t.Fatalf("wishlist: %v", err)
	}

	if err := s.DeleteBook("book-1"); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	if _, ok, _ := s.GetBook("book-1"); ok {
		t.Fatal("book should be gone")
	}
	if _, ok, _ := s.GetConversation(conv.ID); ok {
		t.Fatal("conversation should be gone")
	}
	if msgs, _ := s.ListMessages(conv.ID); len(msgs) != 0 {
		t.Fatalf("messages = %+v, want none", msgs)
	}
	items, err := s.ListWishlistByUser("buyer")
	if err != nil {
		t.Fatalf("list wishlist: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("wishlist = %+v, want none", items)
	}
}

func TestAddWishlistItemDuplicate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.AddWishlistItem(domain.WishlistItem{ID: "w1", UserID: "buyer", BookID: "book-1"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.AddWishlistItem(domain.WishlistItem{ID: "w2", UserID: "buyer", BookID: "book-1"}); err != ErrDuplicate {
		t.Fatalf("second add = %v, want ErrDuplicate", err)
	}
}

func TestSaveUserDuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "alice")
	err := s.SaveUser(domain.User{ID: "u2", Username: "other", Email: "alice@example.com"})
	if err != ErrDuplicate {
		t.Fatalf("duplicate email = %v, want ErrDuplicate", err)
	}
}

func TestListBooksFilters(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveBook(domain.Book{
		ID: "b1", Title: "Dune", Author: "Herbert", Genre: "Sci-Fi",
		Condition: domain.ConditionGood, Price: 80, ListedBy: "seller",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveBook(domain.Book{
		ID: "b2", Title: "Emma", Author: "Austen", Genre: "Classic",
		Condition: domain.ConditionWorn, Price: 20, ListedBy: "seller",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	books, err := s.ListBooks(BookFilter{Genre: "Sci-Fi"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 || books[0].ID != "b1" {
		t.Fatalf("genre filter = %+v", books)
	}

	min := 50.0
	books, err = s.ListBooks(BookFilter{MinPrice: &min})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 || books[0].ID != "b1" {
		t.Fatalf("price filter = %+v", books)
	}

	books, err = s.SearchBooks("aust")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(books) != 1 || books[0].ID != "b2" {
		t.Fatalf("search = %+v", books)
	}
}
