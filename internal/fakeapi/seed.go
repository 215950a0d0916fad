package fakeapi

import (
	"fmt"
	"time"

	"github.com/verte-zerg/bookdesk/internal/fixture"
	"github.com/verte-zerg/bookdesk/internal/model"
)

// SeedOptions sizes the generated data set.
type SeedOptions struct {
	Books    int
	Sellers  int
	Sales    int
	Days     int
	Password string
}

// Seed fills the server with generated sellers, books and sales ending at now.
// Every seller can log in with opts.Password.
func (s *Server) Seed(g *fixture.Generator, now time.Time, opts SeedOptions) ([]model.User, error) {
	if opts.Password == "" {
		return nil, fmt.Errorf("seed password is required")
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	users := g.Users(opts.Sellers)
	for i, u := range users {
		added, err := s.addAccount(u, opts.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to add seller: %w", err)
		}
		users[i] = added
	}
	books := g.Books(opts.Books)
	for _, b := range books {
		s.AddBook(b)
	}
	start := now.Add(-time.Duration(opts.Days-1) * 24 * time.Hour)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	for _, sale := range g.Sales(opts.Sales, books, users, start, opts.Days) {
		if sale.Date.After(now) {
			sale.Date = now
		}
		s.AddSale(sale)
	}
	return users, nil
}
