package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmarket/internal/util"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/notify"
	"bookmarket/pkg/store"
)

// PlaceOrder buys a listing. The book's ordered flag flips in the same
// transaction as the order insert, so of two concurrent buyers exactly one
// wins and the other gets ErrBookUnavailable.
func (a *App) PlaceOrder(ctx context.Context, bookID, buyerID string) (domain.OrderView, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.OrderView{}, ErrBookNotFound
	}
	if book.ListedBy == buyerID {
		return domain.OrderView{}, ErrOwnBookOrder
	}
	if book.Ordered {
		return domain.OrderView{}, ErrBookUnavailable
	}
	now := time.Now().UTC()
	order := domain.Order{
		ID:             util.NewID(),
		BookID:         book.ID,
		BuyerID:        buyerID,
		SellerID:       book.ListedBy,
		Price:          book.Price,
		DeliveryFee:    domain.DeliveryFee,
		Total:          book.Price + domain.DeliveryFee,
		DeliveryStatus: domain.OrderPlaced,
		BookSnapshot: domain.BookSnapshot{
			Title:     book.Title,
			Author:    book.Author,
			Condition: book.Condition,
			ImageKey:  book.ImageKey,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order, err = a.store.CreateOrder(order)
	if err != nil {
		if errors.Is(err, store.ErrBookUnavailable) {
			return domain.OrderView{}, ErrBookUnavailable
		}
		return domain.OrderView{}, fmt.Errorf("create order: %w", err)
	}
	a.events.Publish(ctx, notify.EventOrderPlaced, order)
	return a.orderView(ctx, order, false)
}

// ListMyOrders returns the buyer's orders, newest first.
func (a *App) ListMyOrders(ctx context.Context, buyerID string) ([]domain.OrderView, error) {
	orders, err := a.store.ListOrdersByBuyer(buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return a.orderViews(ctx, orders, false)
}

// ListAllOrders returns every order, newest first. Admin surface.
func (a *App) ListAllOrders(ctx context.Context) ([]domain.OrderView, error) {
	orders, err := a.store.ListOrders()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return a.orderViews(ctx, orders, true)
}

// UpdateOrderStatus advances an order's delivery status. The lifecycle only
// moves forward one step at a time; anything else is rejected.
func (a *App) UpdateOrderStatus(ctx context.Context, orderID string, to domain.DeliveryStatus) (domain.OrderView, error) {
	order, ok, err := a.store.GetOrder(orderID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("load order: %w", err)
	}
	if !ok {
		return domain.OrderView{}, ErrOrderNotFound
	}
	if !domain.NextDeliveryStatus(order.DeliveryStatus, to) {
		return domain.OrderView{}, ErrInvalidTransition
	}
	updated, err := a.store.TransitionOrderStatus(orderID, order.DeliveryStatus, to)
	if err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return domain.OrderView{}, ErrInvalidTransition
		}
		return domain.OrderView{}, fmt.Errorf("transition order: %w", err)
	}
	a.events.Publish(ctx, notify.EventOrderStatusChanged, updated)
	return a.orderView(ctx, updated, true)
}

func (a *App) orderView(ctx context.Context, order domain.Order, withBuyer bool) (domain.OrderView, error) {
	views, err := a.orderViews(ctx, []domain.Order{order}, withBuyer)
	if err != nil {
		return domain.OrderView{}, err
	}
	return views[0], nil
}

func (a *App) orderViews(ctx context.Context, orders []domain.Order, withBuyer bool) ([]domain.OrderView, error) {
	ids := make([]string, 0, len(orders)*2)
	for _, o := range orders {
		ids = append(ids, o.SellerID)
		if withBuyer {
			ids = append(ids, o.BuyerID)
		}
	}
	users, err := a.store.GetUsersByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load order parties: %w", err)
	}
	views := make([]domain.OrderView, 0, len(orders))
	for _, o := range orders {
		view := domain.OrderView{
			Order: o,
			Book: domain.BookSummary{
				ID:        o.BookID,
				Title:     o.BookSnapshot.Title,
				Author:    o.BookSnapshot.Author,
				Condition: o.BookSnapshot.Condition,
				Price:     o.Price,
				ImageURL:  a.coverURL(ctx, o.BookSnapshot.ImageKey),
				ListedBy:  o.SellerID,
				Ordered:   true,
			},
		}
		if seller, ok := users[o.SellerID]; ok {
			view.Seller = domain.UserRef{ID: seller.ID, Username: seller.Username}
		}
		if withBuyer {
			if buyer, ok := users[o.BuyerID]; ok {
				view.Buyer = &domain.UserRef{ID: buyer.ID, Username: buyer.Username}
			}
		}
		views = append(views, view)
	}
	return views, nil
}
