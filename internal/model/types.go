// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Backend expects numeric JSON for money.
	decimal.MarshalJSONWithoutQuotes = true
}

// Identity is the profile resolved for the current credential.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// User is a seller known to the backend.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Book is a catalog entry.
type Book struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	ISBN   string          `json:"isbn"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
}

// BookInput is the payload for creating or updating a book.
type BookInput struct {
	Title  string          `json:"title"`
	Author string          `json:"author"`
	ISBN   string          `json:"isbn"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
}

// Input returns the editable fields of b.
func (b Book) Input() BookInput {
	return BookInput{
		Title:  b.Title,
		Author: b.Author,
		ISBN:   b.ISBN,
		Price:  b.Price,
		Stock:  b.Stock,
	}
}

// BookRef is the book summary embedded in a sale.
type BookRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// UserRef is the seller summary embedded in a sale.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Sale is a recorded sale. Total comes from the backend and is never recomputed.
type Sale struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	Book     BookRef         `json:"book"`
	User     UserRef         `json:"user"`
}

// SaleInput is the payload for recording a sale.
type SaleInput struct {
	UserID   string `json:"userId"`
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

// dateLayouts lists the accepted wire formats for sale dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses a sale timestamp. Values without a zone are taken as UTC.
func ParseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid sale date %q", value)
}

// UnmarshalJSON accepts RFC 3339 timestamps as well as bare dates.
func (s *Sale) UnmarshalJSON(data []byte) error {
	type alias Sale
	var raw struct {
		alias
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Sale(raw.alias)
	if raw.Date == "" {
		s.Date = time.Time{}
		return nil
	}
	parsed, err := ParseInstant(raw.Date)
	if err != nil {
		return err
	}
	s.Date = parsed
	return nil
}

// DailySummary aggregates the sales of one calendar day.
type DailySummary struct {
	Count   int
	Revenue decimal.Decimal
}

// MonthlySummary aggregates the sales of one calendar month.
type MonthlySummary struct {
	Revenue decimal.Decimal
}

// RankedEntry is one row of a top-N ranking.
type RankedEntry struct {
	Key    string
	Label  string
	Metric decimal.Decimal
}

// DateBucket is the revenue of a single calendar date (YYYY-MM-DD).
type DateBucket struct {
	Date  string
	Total decimal.Decimal
}

// Summary holds all dashboard metrics derived from one sales snapshot.
type Summary struct {
	Today      DailySummary
	Month      MonthlySummary
	TopBooks   []RankedEntry
	TopSellers []RankedEntry
	ByDate     []DateBucket
}
