// Package app is the composition root. It owns the lifecycle of the store,
// the API gateway and the session, and wires the gateway's unauthorized
// handling to the session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/config"
	"github.com/verte-zerg/bookdesk/internal/logging"
	"github.com/verte-zerg/bookdesk/internal/model"
	"github.com/verte-zerg/bookdesk/internal/session"
	"github.com/verte-zerg/bookdesk/internal/stats"
	"github.com/verte-zerg/bookdesk/internal/store"
)

// SellerMode decides who is recorded as the seller of a new sale.
type SellerMode string

// Seller modes.
const (
	// SellerSelect lets the operator pick any seller.
	SellerSelect SellerMode = "select"
	// SellerSelf records the current identity as the seller.
	SellerSelf SellerMode = "self"
)

// Options overrides collaborators, mostly for tests.
type Options struct {
	HTTPClient *http.Client
	// Logger replaces the file logger derived from the settings.
	Logger *logrus.Logger
	// Now replaces the wall clock used for analytics.
	Now func() time.Time
}

// App holds the wired components.
type App struct {
	Settings config.Settings
	Log      *logrus.Logger
	Store    *store.Store
	Gateway  *api.Gateway
	Session  *session.Session

	now       func() time.Time
	logCloser io.Closer
}

// New validates settings and builds the components. The caller must Close
// the returned App.
func New(ctx context.Context, settings config.Settings, opts Options) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	var logCloser io.Closer
	if log == nil {
		l, closer, err := logging.Open(settings.LogFile, settings.LogLevel)
		if err != nil {
			return nil, err
		}
		log, logCloser = l, closer
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		closeQuietly(logCloser)
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	gw := api.New(api.Options{
		BaseURL:    settings.BaseURL,
		Timeout:    settings.Timeout,
		HTTPClient: opts.HTTPClient,
		Logger:     log.WithField("component", "api"),
	})
	sess, err := session.New(ctx, gw, st, log.WithField("component", "session"))
	if err != nil {
		closeQuietly(st)
		closeQuietly(logCloser)
		return nil, err
	}
	gw.SetCredentialSource(sess)
	gw.OnUnauthorized(sess.Expire)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log.WithFields(logrus.Fields{
		"base_url": settings.BaseURL,
		"state":    sess.State().String(),
	}).Debug("app started")

	return &App{
		Settings:  settings,
		Log:       log,
		Store:     st,
		Gateway:   gw,
		Session:   sess,
		now:       now,
		logCloser: logCloser,
	}, nil
}

// OnSessionExpired registers the redirect to the login surface. It runs once
// per rejected credential, never for an explicit logout.
func (a *App) OnSessionExpired(fn func(reason string)) {
	a.Session.OnExpire(fn)
}

// Restore confirms a durable credential, if any.
func (a *App) Restore(ctx context.Context) error {
	return a.Session.Restore(ctx)
}

// Login signs in and remembers the email for the next login prompt.
func (a *App) Login(ctx context.Context, email, password string) (model.Identity, error) {
	if _, err := a.Session.Login(ctx, email, password); err != nil {
		return model.Identity{}, err
	}
	if err := a.Store.SaveLastEmail(ctx, email); err != nil {
		a.Log.WithError(err).Warn("failed to remember email")
	}
	return a.Session.ResolveIdentity(ctx)
}

// Logout ends the session.
func (a *App) Logout() error {
	return a.Session.Logout()
}

// ListBooks returns the catalog.
func (a *App) ListBooks(ctx context.Context) ([]model.Book, error) {
	return a.Gateway.ListBooks(ctx)
}

// DeleteBook removes a book.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	if err := a.Gateway.DeleteBook(ctx, id); err != nil {
		return err
	}
	a.Log.WithField("book_id", id).Info("book deleted")
	return nil
}

// ListSales returns every sale.
func (a *App) ListSales(ctx context.Context) ([]model.Sale, error) {
	return a.Gateway.ListSales(ctx)
}

// StatsOptions returns the analytics configuration.
func (a *App) StatsOptions() stats.Options {
	window, err := stats.ParseRankWindow(a.Settings.RankWindow)
	if err != nil {
		window = stats.RankAll
	}
	return stats.Options{TopN: a.Settings.Top, RankWindow: window}
}

// Now returns the current time in the viewer's location.
func (a *App) Now() time.Time {
	return a.now()
}

// Dashboard fetches the sales and summarizes them.
func (a *App) Dashboard(ctx context.Context) (stats.Dashboard, error) {
	return stats.BuildDashboard(ctx, a.Gateway, a.now(), a.StatsOptions())
}

// SellerMode returns the configured seller mode.
func (a *App) SellerMode() SellerMode {
	if SellerMode(a.Settings.Seller) == SellerSelf {
		return SellerSelf
	}
	return SellerSelect
}

// RecordSale records a sale of quantity copies of bookID. In SellerSelf mode
// sellerID is ignored and the current identity is used.
func (a *App) RecordSale(ctx context.Context, bookID, sellerID string, quantity int) (model.Sale, error) {
	if a.SellerMode() == SellerSelf {
		identity, err := a.Session.ResolveIdentity(ctx)
		if err != nil {
			return model.Sale{}, err
		}
		sellerID = identity.ID
	}
	sale, err := a.Gateway.CreateSale(ctx, model.SaleInput{
		UserID:   sellerID,
		BookID:   bookID,
		Quantity: quantity,
	})
	if err != nil {
		return model.Sale{}, err
	}
	a.Log.WithFields(logrus.Fields{
		"sale_id":  sale.ID,
		"book_id":  bookID,
		"quantity": quantity,
	}).Info("sale recorded")
	return sale, nil
}

// Close stops background work and releases the store and log file.
func (a *App) Close() error {
	a.Session.Close()
	var errs []error
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close db: %w", err))
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeQuietly(c io.Closer) {
	if c == nil {
		return
	}
	if cerr := c.Close(); cerr != nil {
		// Best-effort close.
		_ = cerr
	}
}
