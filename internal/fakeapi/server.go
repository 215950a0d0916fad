// Package fakeapi is an in-memory implementation of the bookstore REST API.
// It backs the client tests and the demo-server command.
package fakeapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	user         model.User
	passwordHash []byte
}

// Server holds the backend state.
type Server struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	latency  time.Duration
	failMe   bool
	now      func() time.Time

	accounts []*account
	books    []model.Book
	sales    []model.Sale
	calls    map[string]int

	app *fiber.App
}

// New returns an empty server with routes registered.
func New() *Server {
	s := &Server{
		secret:   []byte(uuid.NewString()),
		tokenTTL: time.Hour,
		now:      time.Now,
		calls:    map[string]int{},
	}
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.routes()
	return s
}

// App exposes the fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler adapts the fiber application to net/http.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Start serves the API on a local test listener and returns it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

// Listen serves the API on addr until the app is shut down.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops a server started with Listen.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// SetTokenTTL changes the lifetime of newly issued tokens.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	s.tokenTTL = ttl
	s.mu.Unlock()
}

// SetLatency delays every response.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// SetFailMe makes GET /users/me answer 500.
func (s *Server) SetFailMe(fail bool) {
	s.mu.Lock()
	s.failMe = fail
	s.mu.Unlock()
}

// SetClock replaces the server clock used for sale dates and token times.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AddUser registers a seller with a bcrypt-hashed password.
func (s *Server) AddUser(name, email, password string) (model.User, error) {
	return s.addAccount(model.User{ID: uuid.NewString(), Name: name, Email: email}, password)
}

func (s *Server) addAccount(user model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	s.accounts = append(s.accounts, &account{user: user, passwordHash: hash})
	s.mu.Unlock()
	return user, nil
}

// AddBook inserts a catalog entry. An empty id is generated.
func (s *Server) AddBook(book model.Book) model.Book {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.books = append(s.books, book)
	s.mu.Unlock()
	return book
}

// AddSale inserts a sale as-is.
func (s *Server) AddSale(sale model.Sale) model.Sale {
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.sales = append(s.sales, sale)
	s.mu.Unlock()
	return sale
}

// IssueToken signs a token for userID valid for ttl (negative ttl yields an expired token).
func (s *Server) IssueToken(userID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	now := s.now()
	secret := s.secret
	s.mu.Unlock()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// RevokeAll invalidates every token issued so far by rotating the signing key.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.secret = []byte(uuid.NewString())
	s.mu.Unlock()
}

// Calls returns how many requests hit "METHOD /path".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Books returns a copy of the catalog.
func (s *Server) Books() []model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Book(nil), s.books...)
}

// Sales returns a copy of the recorded sales.
func (s *Server) Sales() []model.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Sale(nil), s.sales...)
}

func (s *Server) routes() {
	s.app.Use(s.track)
	s.app.Post("/login", s.handleLogin)

	s.app.Get("/users/me", s.authenticate, s.handleMe)
	s.app.Get("/users", s.authenticate, s.handleListUsers)
	s.app.Get("/books", s.authenticate, s.handleListBooks)
	s.app.Get("/books/:id", s.authenticate, s.handleGetBook)
	s.app.Post("/books", s.authenticate, s.handleCreateBook)
	s.app.Put("/books/:id", s.authenticate, s.handleUpdateBook)
	s.app.Delete("/books/:id", s.authenticate, s.handleDeleteBook)
	s.app.Get("/sales", s.authenticate, s.handleListSales)
	s.app.Post("/sales", s.authenticate, s.handleCreateSale)
}

func (s *Server) track(c *fiber.Ctx) error {
	route := c.Method() + " " + c.Path()
	s.mu.Lock()
	s.calls[route]++
	latency := s.latency
	s.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}
	return c.Next()
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// authenticate verifies the bearer token and stores the user id in locals.
func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "Missing authorization header")
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid token format")
	}

	s.mu.Lock()
	secret := s.secret
	now := s.now
	s.mu.Unlock()

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(now))
	if err != nil || !token.Valid {
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}
	c.Locals("userID", claims.Subject)
	return c.Next()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if req.Email == "" || req.Password == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Email and password are required")
	}
	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, req.Email) {
			found = a
			break
		}
	}
	ttl := s.tokenTTL
	s.mu.Unlock()
	if found == nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)); err != nil {
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	token, err := s.IssueToken(found.user.ID, ttl)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Could not sign token")
	}
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMe {
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}
	for _, a := range s.accounts {
		if a.user.ID == userID {
			return c.JSON(model.Identity{ID: a.user.ID, Name: a.user.Name, Email: a.user.Email})
		}
	}
	return errorJSON(c, fiber.StatusNotFound, "User not found")
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	s.mu.Lock()
	users := make([]model.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, a.user)
	}
	s.mu.Unlock()
	return c.JSON(users)
}

func (s *Server) handleListBooks(c *fiber.Ctx) error {
	return c.JSON(s.Books())
}

func (s *Server) findBook(id string) (int, bool) {
	for i, b := range s.books {
		if b.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) handleGetBook(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findBook(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "Book not found")
	}
	return c.JSON(s.books[idx])
}

// parseBook decodes and checks a book payload, returning a client-facing message on failure.
func parseBook(c *fiber.Ctx) (model.BookInput, string) {
	var in model.BookInput
	if err := c.BodyParser(&in); err != nil {
		return in, "Cannot parse JSON"
	}
	if in.Title == "" || in.Author == "" || in.ISBN == "" {
		return in, "Title, author and isbn are required"
	}
	if in.Price.IsNegative() || in.Stock < 0 {
		return in, "Price and stock must not be negative"
	}
	return in, ""
}

func (s *Server) handleCreateBook(c *fiber.Ctx) error {
	in, msg := parseBook(c)
	if msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}
	s.mu.Lock()
	for _, b := range s.books {
		if b.ISBN == in.ISBN {
			s.mu.Unlock()
			return errorJSON(c, fiber.StatusBadRequest, "ISBN already registered")
		}
	}
	s.mu.Unlock()
	book := s.AddBook(model.Book{Title: in.Title, Author: in.Author, ISBN: in.ISBN, Price: in.Price, Stock: in.Stock})
	return c.Status(fiber.StatusCreated).JSON(book)
}

func (s *Server) handleUpdateBook(c *fiber.Ctx) error {
	in, msg := parseBook(c)
	if msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findBook(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "Book not found")
	}
	book := model.Book{ID: s.books[idx].ID, Title: in.Title, Author: in.Author, ISBN: in.ISBN, Price: in.Price, Stock: in.Stock}
	s.books[idx] = book
	return c.JSON(book)
}

func (s *Server) handleDeleteBook(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findBook(c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "Book not found")
	}
	s.books = append(s.books[:idx], s.books[idx+1:]...)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListSales(c *fiber.Ctx) error {
	sales := s.Sales()
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Date.Before(sales[j].Date) })
	return c.JSON(sales)
}

func (s *Server) handleCreateSale(c *fiber.Ctx) error {
	var in model.SaleInput
	if err := c.BodyParser(&in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if in.UserID == "" || in.BookID == "" || in.Quantity < 1 {
		return errorJSON(c, fiber.StatusBadRequest, "userId, bookId and a positive quantity are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var seller *model.User
	for _, a := range s.accounts {
		if a.user.ID == in.UserID {
			seller = &a.user
			break
		}
	}
	if seller == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Seller not found")
	}
	idx, ok := s.findBook(in.BookID)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "Book not found")
	}
	book := &s.books[idx]
	if book.Stock < in.Quantity {
		return errorJSON(c, fiber.StatusBadRequest, "Insufficient stock")
	}
	book.Stock -= in.Quantity
	sale := model.Sale{
		ID:       uuid.NewString(),
		Date:     s.now().UTC(),
		Quantity: in.Quantity,
		Total:    book.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Book:     model.BookRef{ID: book.ID, Title: book.Title, Author: book.Author},
		User:     model.UserRef{ID: seller.ID, Name: seller.Name},
	}
	s.sales = append(s.sales, sale)
	return c.Status(fiber.StatusCreated).JSON(sale)
}
