package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/verte-zerg/bookdesk/internal/model"
	"golang.org/x/sync/errgroup"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token. It never sends the current
// credential; a rejection maps to ErrInvalidCredentials.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, error) {
	var resp loginResponse
	err := g.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/login",
		Body:      loginRequest{Email: email, Password: password},
		Anonymous: true,
	}, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				apiErr.kind = ErrInvalidCredentials
			}
		}
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", &Error{Method: http.MethodPost, Path: "/login", Message: "login response has no token", kind: ErrUnavailable}
	}
	return resp.Token, nil
}

// Me resolves the identity of the current credential.
func (g *Gateway) Me(ctx context.Context) (model.Identity, error) {
	var identity model.Identity
	if err := g.get(ctx, "/users/me", &identity); err != nil {
		return model.Identity{}, err
	}
	return identity, nil
}

// MeAs resolves the identity of a specific credential.
func (g *Gateway) MeAs(ctx context.Context, cred Credential) (model.Identity, error) {
	var identity model.Identity
	if err := g.Do(ctx, Request{Method: http.MethodGet, Path: "/users/me", As: &cred}, &identity); err != nil {
		return model.Identity{}, err
	}
	return identity, nil
}

// ListBooks returns the catalog.
func (g *Gateway) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if err := g.get(ctx, "/books", &books); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook loads one book.
func (g *Gateway) GetBook(ctx context.Context, id string) (model.Book, error) {
	if strings.TrimSpace(id) == "" {
		return model.Book{}, Validation("book id is required")
	}
	var book model.Book
	if err := g.get(ctx, bookPath(id), &book); err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// CreateBook adds a book to the catalog.
func (g *Gateway) CreateBook(ctx context.Context, in model.BookInput) (model.Book, error) {
	if err := ValidateBook(in); err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := g.post(ctx, "/books", in, &book); err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// UpdateBook replaces the editable fields of a book.
func (g *Gateway) UpdateBook(ctx context.Context, id string, in model.BookInput) (model.Book, error) {
	if strings.TrimSpace(id) == "" {
		return model.Book{}, Validation("book id is required")
	}
	if err := ValidateBook(in); err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := g.put(ctx, bookPath(id), in, &book); err != nil {
		return model.Book{}, err
	}
	return book, nil
}

// DeleteBook removes a book.
func (g *Gateway) DeleteBook(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return Validation("book id is required")
	}
	return g.delete(ctx, bookPath(id))
}

// ListSales returns every recorded sale.
func (g *Gateway) ListSales(ctx context.Context) ([]model.Sale, error) {
	var sales []model.Sale
	if err := g.get(ctx, "/sales", &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// CreateSale records a sale. The backend computes the total.
func (g *Gateway) CreateSale(ctx context.Context, in model.SaleInput) (model.Sale, error) {
	if err := ValidateSale(in); err != nil {
		return model.Sale{}, err
	}
	var sale model.Sale
	if err := g.post(ctx, "/sales", in, &sale); err != nil {
		return model.Sale{}, err
	}
	return sale, nil
}

// ListUsers returns the sellers.
func (g *Gateway) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := g.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SaleForm holds the choices offered when recording a sale.
type SaleForm struct {
	Users []model.User
	Books []model.Book
}

// LoadSaleForm fetches sellers and books concurrently. Either failure cancels
// the other and is returned.
func (g *Gateway) LoadSaleForm(ctx context.Context) (SaleForm, error) {
	var form SaleForm
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		users, err := g.ListUsers(egCtx)
		if err != nil {
			return err
		}
		form.Users = users
		return nil
	})
	eg.Go(func() error {
		books, err := g.ListBooks(egCtx)
		if err != nil {
			return err
		}
		form.Books = books
		return nil
	})
	if err := eg.Wait(); err != nil {
		return SaleForm{}, err
	}
	return form, nil
}

// ValidateBook checks the required book fields.
func ValidateBook(in model.BookInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return Validation("title is required")
	case strings.TrimSpace(in.Author) == "":
		return Validation("author is required")
	case strings.TrimSpace(in.ISBN) == "":
		return Validation("isbn is required")
	case in.Price.IsNegative():
		return Validation("price must be >= 0")
	case in.Stock < 0:
		return Validation("stock must be >= 0")
	}
	return nil
}

// ValidateSale checks the required sale fields.
func ValidateSale(in model.SaleInput) error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return Validation("seller is required")
	case strings.TrimSpace(in.BookID) == "":
		return Validation("book is required")
	case in.Quantity < 1:
		return Validation("quantity must be >= 1")
	}
	return nil
}

func bookPath(id string) string {
	return fmt.Sprintf("/books/%s", url.PathEscape(id))
}
