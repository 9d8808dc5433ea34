package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization code flow.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

// OAuthHandler receives a single authorization code callback and exchanges it for tokens.
//
// The state parameter must match the one the flow was started with. Only the first callback is
// processed; later ones are rejected.
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	path    string
	results chan OAuthResult
	once    sync.Once
	mu      sync.Mutex
	handled bool
}

// NewOAuthHandler creates a new OAuthHandler listening on path (e.g. "/callback").
func NewOAuthHandler(config *oauth2.Config, state, path string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		config:  config,
		state:   state,
		path:    path,
		results: make(chan OAuthResult, 1),
	}
}

// Routes returns the callback path.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// AuthCodeURL is the consent URL the user must open. Offline access is requested so the platform issues
// a refresh token.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.handled = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.finish(w, http.StatusBadRequest, OAuthResult{Err: errors.New("invalid state parameter")})
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization failed: %s %s", q.Get("error"), q.Get("error_description"))
		h.finish(w, http.StatusBadRequest, OAuthResult{Err: err})
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.finish(w, http.StatusBadGateway, OAuthResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		return
	}
	if token.RefreshToken == "" {
		h.finish(w, http.StatusBadGateway, OAuthResult{Err: errors.New("token response did not include a refresh token")})
		return
	}

	h.finish(w, http.StatusOK, OAuthResult{Token: token})
}

func (h *OAuthHandler) finish(w http.ResponseWriter, status int, result OAuthResult) {
	h.Send(result)

	page := struct{ Title, Message string }{"Authorization Successful", "You can close this window and return to the terminal."}
	if result.Err != nil {
		page.Title, page.Message = "Authorization Failed", result.Err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, page)
}

// Send delivers result to [OAuthHandler.Result] once; later calls are ignored.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
