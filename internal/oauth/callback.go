package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	// CallbackPath is the redirect path registered with the OAuth client.
	CallbackPath = "/oauth2callback"
	// DefaultCallbackAddr matches the redirect URI Google desktop clients
	// are usually registered with.
	DefaultCallbackAddr = "localhost:8080"
)

// ErrAuthorizationDenied is returned when the provider redirects back with an
// error instead of a code.
var ErrAuthorizationDenied = errors.New("authorization denied")

type callbackResult struct {
	code string
	err  error
}

// CallbackServer receives the single redirect of a browser authorization.
type CallbackServer struct {
	addr     string
	listener net.Listener
	server   *http.Server
	results  chan callbackResult

	mu    sync.Mutex
	state string
}

func NewCallbackServer(addr string) *CallbackServer {
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	return &CallbackServer{addr: addr, results: make(chan callbackResult, 1)}
}

// Listen binds the server's address. It is a no-op once bound.
func (s *CallbackServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	router := chi.NewRouter()
	router.Get(CallbackPath, s.handleCallback)
	s.server = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() { _ = s.server.Serve(ln) }()
	return nil
}

// URL is the redirect URI for the bound address.
func (s *CallbackServer) URL() string {
	host := s.addr
	if s.listener != nil {
		host = s.listener.Addr().String()
		if h, _, err := net.SplitHostPort(s.addr); err == nil && h == "localhost" {
			_, port, _ := net.SplitHostPort(host)
			host = net.JoinHostPort("localhost", port)
		}
	}
	return "http://" + host + CallbackPath
}

// WaitForCallback blocks until a redirect carrying state arrives or ctx ends.
// Redirects with a different state are rejected and waiting continues.
func (s *CallbackServer) WaitForCallback(ctx context.Context, state string) (string, error) {
	if err := s.Listen(); err != nil {
		return "", err
	}
	s.expect(state)

	select {
	case res := <-s.results:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

// expect sets the state a valid redirect must carry.
func (s *CallbackServer) expect(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *CallbackServer) validState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != "" && state == s.state
}

func (s *CallbackServer) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if !s.validState(query.Get("state")) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	if reason := query.Get("error"); reason != "" {
		writePage(w, http.StatusOK, "Authorization Failed", "Error: "+reason)
		s.deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrAuthorizationDenied, reason)})
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	writePage(w, http.StatusOK, "Authorization Successful", "You can close this window and return to the terminal.")
	s.deliver(callbackResult{code: code})
}

func (s *CallbackServer) deliver(res callbackResult) {
	select {
	case s.results <- res:
	default:
	}
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>%[1]s</title></head><body><h1>%[1]s</h1><p>%[2]s</p></body></html>`,
		html.EscapeString(title), html.EscapeString(message))
}
