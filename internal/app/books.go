package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/notify"
	"bookmarket/pkg/store"
)

const (
	coverImageMaxBytes = 5 << 20
	coverURLExpiry     = 15 * time.Minute
)

var coverContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// BookInput carries the client-supplied listing fields.
type BookInput struct {
	Title     string
	Author    string
	Genre     string
	Condition domain.Condition
	Price     float64
}

// CoverUpload describes an uploaded cover image.
type CoverUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

func validateBookInput(in BookInput) error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" || strings.TrimSpace(in.Genre) == "" {
		return ErrInvalidBookInput
	}
	if !domain.ValidCondition(in.Condition) {
		return ErrInvalidCondition
	}
	if in.Price <= 0 {
		return ErrInvalidBookPrice
	}
	return nil
}

// CreateBook lists a book for sale, optionally storing its cover image.
func (a *App) CreateBook(ctx context.Context, ownerID string, in BookInput, cover *CoverUpload) (domain.BookView, error) {
	if err := validateBookInput(in); err != nil {
		return domain.BookView{}, err
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:        util.NewID(),
		Title:     strings.TrimSpace(in.Title),
		Author:    strings.TrimSpace(in.Author),
		Genre:     strings.TrimSpace(in.Genre),
		Condition: in.Condition,
		Price:     in.Price,
		ListedBy:  ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cover != nil {
		key, err := a.storeCover(ctx, book.ID, cover)
		if err != nil {
			return domain.BookView{}, err
		}
		book.ImageKey = key
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.BookView{}, fmt.Errorf("save book: %w", err)
	}
	a.events.Publish(ctx, notify.EventBookListed, book)
	return a.bookView(ctx, book)
}

// GetBook returns one listing with its lister resolved.
func (a *App) GetBook(ctx context.Context, id string) (domain.BookView, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.BookView{}, ErrBookNotFound
	}
	return a.bookView(ctx, book)
}

// ListBooks returns the catalog narrowed by filter.
func (a *App) ListBooks(ctx context.Context, filter store.BookFilter) ([]domain.BookView, error) {
	books, err := a.store.ListBooks(filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return a.bookViews(ctx, books)
}

// SearchBooks matches the query against titles and authors.
func (a *App) SearchBooks(ctx context.Context, query string) ([]domain.BookView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.BookView{}, nil
	}
	books, err := a.store.SearchBooks(query)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return a.bookViews(ctx, books)
}

// ListGenres returns the distinct genres currently listed.
func (a *App) ListGenres() ([]string, error) {
	genres, err := a.store.ListGenres()
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// MyListings returns the books listed by ownerID.
func (a *App) MyListings(ctx context.Context, ownerID string) ([]domain.BookView, error) {
	books, err := a.store.ListBooksByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list own books: %w", err)
	}
	return a.bookViews(ctx, books)
}

// UpdateBook edits a listing. Only the lister or an admin may edit, and sold
// books are frozen. The ordered flag and lister never change on edit.
func (a *App) UpdateBook(ctx context.Context, actor domain.User, id string, in BookInput, cover *CoverUpload) (domain.BookView, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.BookView{}, ErrBookNotFound
	}
	if book.ListedBy != actor.ID && !actor.Admin {
		return domain.BookView{}, ErrNotBookOwner
	}
	if book.Ordered {
		return domain.BookView{}, ErrBookAlreadySold
	}
	if err := validateBookInput(in); err != nil {
		return domain.BookView{}, err
	}
	book.Title = strings.TrimSpace(in.Title)
	book.Author = strings.TrimSpace(in.Author)
	book.Genre = strings.TrimSpace(in.Genre)
	book.Condition = in.Condition
	book.Price = in.Price
	book.UpdatedAt = time.Now().UTC()
	if cover != nil {
		oldKey := book.ImageKey
		key, err := a.storeCover(ctx, book.ID, cover)
		if err != nil {
			return domain.BookView{}, err
		}
		book.ImageKey = key
		if oldKey != "" && a.objects != nil {
			if err := a.objects.Delete(ctx, oldKey); err != nil {
				slog.Warn("stale cover delete failed", "key", oldKey, "err", err)
			}
		}
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.BookView{}, fmt.Errorf("save book: %w", err)
	}
	return a.bookView(ctx, book)
}

// DeleteBook removes a listing together with its conversations, messages and
// wishlist entries. Only the lister or an admin may delete.
func (a *App) DeleteBook(ctx context.Context, actor domain.User, id string) error {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	if book.ListedBy != actor.ID && !actor.Admin {
		return ErrNotBookOwner
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if book.ImageKey != "" && a.objects != nil {
		if err := a.objects.Delete(ctx, book.ImageKey); err != nil {
			slog.Warn("cover delete failed", "key", book.ImageKey, "err", err)
		}
	}
	return nil
}

func (a *App) storeCover(ctx context.Context, bookID string, cover *CoverUpload) (string, error) {
	if a.objects == nil {
		return "", errors.New("object storage not configured")
	}
	if cover.Size <= 0 || cover.Size > coverImageMaxBytes {
		return "", ErrCoverImageTooBig
	}
	ext, ok := coverContentTypes[strings.ToLower(strings.TrimSpace(cover.ContentType))]
	if !ok {
		return "", ErrCoverImageInvalid
	}
	key := fmt.Sprintf("covers/%s/%s%s", bookID, util.NewID(), ext)
	if err := a.objects.Put(ctx, key, cover.Reader, cover.Size, cover.ContentType); err != nil {
		return "", fmt.Errorf("store cover: %w", err)
	}
	return key, nil
}

func (a *App) coverURL(ctx context.Context, key string) string {
	if key == "" || a.objects == nil {
		return ""
	}
	url, err := a.objects.PresignGet(ctx, key, coverURLExpiry)
	if err != nil {
		slog.Warn("cover presign failed", "key", key, "err", err)
		return ""
	}
	return url
}

func (a *App) bookView(ctx context.Context, book domain.Book) (domain.BookView, error) {
	lister, ok, err := a.store.GetUserByID(book.ListedBy)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("load lister: %w", err)
	}
	view := domain.BookView{
		Book:     book,
		ImageURL: a.coverURL(ctx, book.ImageKey),
	}
	if ok {
		view.Lister = domain.UserRef{ID: lister.ID, Username: lister.Username}
	}
	return view, nil
}

func (a *App) bookViews(ctx context.Context, books []domain.Book) ([]domain.BookView, error) {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ListedBy)
	}
	users, err := a.store.GetUsersByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load listers: %w", err)
	}
	views := make([]domain.BookView, 0, len(books))
	for _, b := range books {
		view := domain.BookView{
			Book:     b,
			ImageURL: a.coverURL(ctx, b.ImageKey),
		}
		if lister, ok := users[b.ListedBy]; ok {
			view.Lister = domain.UserRef{ID: lister.ID, Username: lister.Username}
		}
		views = append(views, view)
	}
	return views, nil
}

func (a *App) bookSummary(ctx context.Context, book domain.Book) domain.BookSummary {
	return domain.BookSummary{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		Genre:     book.Genre,
		Condition: book.Condition,
		Price:     book.Price,
		ImageURL:  a.coverURL(ctx, book.ImageKey),
		ListedBy:  book.ListedBy,
		Ordered:   book.Ordered,
	}
}
