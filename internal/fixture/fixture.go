// Package fixture builds randomized catalog and sales data.
package fixture

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
)

var (
	titleWords = []string{
		"Dom", "Casmurro", "Grande", "Sertão", "Veredas", "Memórias", "Póstumas",
		"Capitães", "Areia", "Vidas", "Secas", "Hora", "Estrela", "Quincas",
		"Borba", "Cortiço", "Iracema", "Senhora", "Macunaíma", "Lavoura",
	}
	firstNames = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Felipe", "Gabriela", "Heitor"}
	lastNames  = []string{"Silva", "Souza", "Costa", "Lima", "Rocha", "Alves", "Pereira"}
)

// Generator produces randomized fixtures from a seed.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator with a fixed seed so runs are reproducible.
func New(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// NewRandom returns a Generator seeded with the current time.
func NewRandom() *Generator {
	return New(time.Now().UnixNano())
}

// Int returns a non-negative pseudo-random int in [0,n).
func (g *Generator) Int(n int) int {
	return g.rnd.Intn(n)
}

// Shuffle permutes items in place.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	g.rnd.Shuffle(n, swap)
}

// Name returns a random person name.
func (g *Generator) Name() string {
	return firstNames[g.rnd.Intn(len(firstNames))] + " " + lastNames[g.rnd.Intn(len(lastNames))]
}

// Users returns count sellers with unique ids.
func (g *Generator) Users(count int) []model.User {
	users := make([]model.User, 0, count)
	for i := 0; i < count; i++ {
		name := g.Name()
		users = append(users, model.User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: fmt.Sprintf("seller%d@bookdesk.test", i+1),
		})
	}
	return users
}

// Books returns count catalog entries with unique ids.
func (g *Generator) Books(count int) []model.Book {
	books := make([]model.Book, 0, count)
	for i := 0; i < count; i++ {
		books = append(books, model.Book{
			ID:     uuid.NewString(),
			Title:  g.title(),
			Author: g.Name(),
			ISBN:   fmt.Sprintf("978%010d", g.rnd.Int63n(1e10)),
			Price:  decimal.New(int64(500+g.rnd.Intn(15000)), -2),
			Stock:  g.rnd.Intn(50),
		})
	}
	return books
}

// Sales returns count sales between start and start+days. Books earlier in
// the slice are picked more often so rankings have a clear order.
func (g *Generator) Sales(count int, books []model.Book, users []model.User, start time.Time, days int) []model.Sale {
	if len(books) == 0 || len(users) == 0 || days <= 0 {
		return nil
	}
	weights := make([]float64, len(books))
	total := 0.0
	for i := range books {
		w := 1.0 / float64(i+1)
		weights[i] = w
		total += w
	}

	sales := make([]model.Sale, 0, count)
	for i := 0; i < count; i++ {
		r := g.rnd.Float64() * total
		acc := 0.0
		idx := len(books) - 1
		for j, w := range weights {
			acc += w
			if r <= acc {
				idx = j
				break
			}
		}
		book := books[idx]
		user := users[g.rnd.Intn(len(users))]
		qty := 1 + g.rnd.Intn(4)
		offset := time.Duration(g.rnd.Int63n(int64(days) * int64(24*time.Hour)))
		sales = append(sales, model.Sale{
			ID:       uuid.NewString(),
			Date:     start.Add(offset),
			Quantity: qty,
			Total:    book.Price.Mul(decimal.NewFromInt(int64(qty))),
			Book:     model.BookRef{ID: book.ID, Title: book.Title, Author: book.Author},
			User:     model.UserRef{ID: user.ID, Name: user.Name},
		})
	}
	return sales
}

func (g *Generator) title() string {
	n := 1 + g.rnd.Intn(3)
	out := titleWords[g.rnd.Intn(len(titleWords))]
	for i := 1; i < n; i++ {
		out += " " + titleWords[g.rnd.Intn(len(titleWords))]
	}
	return out
}
