package panelclient

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

const (
	// tokenRefreshSkew renews a token this long before it expires
	tokenRefreshSkew = time.Minute
	// fallbackTokenTTL is used when a token carries no exp claim
	fallbackTokenTTL = 30 * time.Minute
)

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// session authenticates against panels and caches bearer tokens per server
type session struct {
	transport *Transport
	clock     clock.Clock

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func newSession(t *Transport, clk clock.Clock) *session {
	return &session{
		transport: t,
		clock:     clk,
		tokens:    make(map[string]cachedToken),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// token returns a valid bearer token for server, logging in when needed
func (s *session) token(ctx context.Context, server *panel.Server) (string, error) {
	s.mu.Lock()
	cached, ok := s.tokens[server.ID]
	s.mu.Unlock()
	if ok && s.clock.Now().Before(cached.expiresAt.Add(-tokenRefreshSkew)) {
		return cached.value, nil
	}

	var resp tokenResponse
	err := s.transport.Do(ctx, request{
		panel:  string(server.Type),
		method: http.MethodPost,
		url:    endpoint(server, "/api/admins/token"),
		form: url.Values{
			"username":   {server.Username},
			"password":   {server.Password},
			"grant_type": {"password"},
		},
	}, &resp)
	if err != nil {
		return "", errors.PanelAuthError(server.Remark, err)
	}
	if resp.AccessToken == "" {
		return "", errors.PanelAuthError(server.Remark, stderrors.New("empty access token"))
	}

	tok := cachedToken{value: resp.AccessToken, expiresAt: s.expiry(resp.AccessToken)}
	s.mu.Lock()
	s.tokens[server.ID] = tok
	s.mu.Unlock()
	return tok.value, nil
}

// expiry reads the exp claim without verifying the signature; the panel
// is the only party that can verify it.
func (s *session) expiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return s.clock.Now().Add(fallbackTokenTTL)
}

func (s *session) invalidate(serverID string) {
	s.mu.Lock()
	delete(s.tokens, serverID)
	s.mu.Unlock()
}

// call performs an authenticated request. A 401 drops the cached token and
// the request is repeated once with a fresh one.
func (s *session) call(ctx context.Context, server *panel.Server, method, path string, query url.Values, body, out interface{}) error {
	for attempt := 0; ; attempt++ {
		tok, err := s.token(ctx, server)
		if err != nil {
			return err
		}
		err = s.transport.Do(ctx, request{
			panel:  string(server.Type),
			method: method,
			url:    endpoint(server, path),
			token:  tok,
			query:  query,
			body:   body,
		}, out)

		var se *StatusError
		if attempt == 0 && stderrors.As(err, &se) && se.Code == http.StatusUnauthorized {
			s.invalidate(server.ID)
			continue
		}
		if err != nil {
			return errors.PanelAPIError(server.Remark, err)
		}
		return nil
	}
}

func endpoint(server *panel.Server, path string) string {
	return strings.TrimRight(server.Host, "/") + path
}
