// Package api is the HTTP gateway to the bookstore backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Credential is the bearer token together with the session epoch it belongs to.
// Epoch changes on every session transition; an empty Token means anonymous.
type Credential struct {
	Token string
	Epoch uint64
}

// Valid reports whether c carries a token.
func (c Credential) Valid() bool {
	return c.Token != ""
}

// CredentialSource yields the current credential. It is read once per request.
type CredentialSource interface {
	Credential() Credential
}

// Request describes one JSON call.
type Request struct {
	Method string
	Path   string
	Body   any
	// Anonymous sends the request without an Authorization header.
	Anonymous bool
	// As overrides the credential source for this request.
	As *Credential
}

// Options configures a Gateway.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Gateway performs JSON requests against the backend, injecting the session
// credential and collapsing concurrent authorization failures into one teardown.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger

	mu          sync.Mutex
	source      CredentialSource
	invalidated uint64
	handlers    []func(Credential)
}

// New constructs a gateway.
func New(opts Options) *Gateway {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		nop := logrus.New()
		nop.SetOutput(io.Discard)
		log = nop
	}
	return &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		log:        log,
	}
}

// BaseURL returns the configured backend URL.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// SetCredentialSource sets where per-request credentials come from.
func (g *Gateway) SetCredentialSource(src CredentialSource) {
	g.mu.Lock()
	g.source = src
	g.mu.Unlock()
}

// OnUnauthorized registers a handler run once per credential epoch when the
// backend rejects that credential with 401.
func (g *Gateway) OnUnauthorized(fn func(Credential)) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.handlers = append(g.handlers, fn)
	g.mu.Unlock()
}

// credentialFor returns the credential to attach to req, or a zero credential.
func (g *Gateway) credentialFor(req Request) Credential {
	if req.Anonymous {
		return Credential{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var cred Credential
	if req.As != nil {
		cred = *req.As
	} else if g.source != nil {
		cred = g.source.Credential()
	}
	if !cred.Valid() || (g.invalidated != 0 && cred.Epoch <= g.invalidated) {
		return Credential{}
	}
	return cred
}

// unauthorized runs the handlers for cred unless its epoch was already torn down.
func (g *Gateway) unauthorized(cred Credential) {
	g.mu.Lock()
	if g.invalidated != 0 && cred.Epoch <= g.invalidated {
		g.mu.Unlock()
		return
	}
	g.invalidated = cred.Epoch
	handlers := append([]func(Credential){}, g.handlers...)
	g.mu.Unlock()

	g.log.WithField("epoch", cred.Epoch).Warn("credential rejected by backend; ending session")
	for _, fn := range handlers {
		fn(cred)
	}
}

// Do executes req and decodes a successful JSON response into out (which may be nil).
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	cred := g.credentialFor(req)
	if cred.Valid() {
		httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	entry := g.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.Path,
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return &Error{Method: req.Method, Path: req.Path, Message: "request failed", kind: ErrUnavailable, cause: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	entry.WithField("status", resp.StatusCode).Debug("request")

	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp)
		apiErr.Method = req.Method
		apiErr.Path = req.Path
		if resp.StatusCode == http.StatusUnauthorized && cred.Valid() {
			g.unauthorized(cred)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			// Draining only keeps the connection reusable.
			_ = err
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Message: "invalid response body", kind: ErrUnavailable, cause: err}
	}
	return nil
}

func decodeError(resp *http.Response) *Error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(data, &errResp)
	msg := strings.TrimSpace(errResp.Error)
	if msg == "" {
		msg = strings.TrimSpace(errResp.Message)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Status:  resp.StatusCode,
		Message: msg,
		Code:    strings.TrimSpace(errResp.Code),
		kind:    kindForStatus(resp.StatusCode),
	}
}

func (g *Gateway) get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (g *Gateway) put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (g *Gateway) delete(ctx context.Context, path string) error {
	return g.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
