package app

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalUsers  int64 `json:"totalUsers"`
	TotalBooks  int64 `json:"totalBooks"`
	TotalOrders int64 `json:"totalOrders"`
}

// GetAnalytics counts users, books and orders. The counts run in parallel.
func (a *App) GetAnalytics() (Analytics, error) {
	var stats Analytics
	var g errgroup.Group
	g.Go(func() error {
		n, err := a.store.UserCount()
		stats.TotalUsers = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.BookCount()
		stats.TotalBooks = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.OrderCount()
		stats.TotalOrders = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("collect analytics: %w", err)
	}
	return stats, nil
}
