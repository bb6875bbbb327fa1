package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/store"
)

// AddToWishlist saves a listing on the user's wishlist. Duplicate adds for
// the same book conflict.
func (a *App) AddToWishlist(ctx context.Context, userID, bookID string) (domain.WishlistView, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.WishlistView{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.WishlistView{}, ErrBookNotFound
	}
	item := domain.WishlistItem{
		ID:        util.NewID(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AddWishlistItem(item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.WishlistView{}, ErrWishlistDuplicate
		}
		return domain.WishlistView{}, fmt.Errorf("add wishlist item: %w", err)
	}
	return domain.WishlistView{
		WishlistItem: item,
		Book:         a.bookSummary(ctx, book),
	}, nil
}

// ListWishlist returns the user's wishlist with book summaries resolved.
// Entries whose book was deleted are dropped from the result.
func (a *App) ListWishlist(ctx context.Context, userID string) ([]domain.WishlistView, error) {
	items, err := a.store.ListWishlistByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	views := make([]domain.WishlistView, 0, len(items))
	for _, item := range items {
		book, ok, err := a.store.GetBook(item.BookID)
		if err != nil {
			return nil, fmt.Errorf("load book: %w", err)
		}
		if !ok {
			continue
		}
		views = append(views, domain.WishlistView{
			WishlistItem: item,
			Book:         a.bookSummary(ctx, book),
		})
	}
	return views, nil
}

// RemoveFromWishlist deletes the user's wishlist entry for a book. Removing
// an entry that does not exist is a no-op.
func (a *App) RemoveFromWishlist(userID, bookID string) error {
	if err := a.store.RemoveWishlistItem(userID, bookID); err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}
