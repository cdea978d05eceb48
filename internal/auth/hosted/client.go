// Package hosted talks to a GoTrue-compatible hosted auth API.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"peoplehub/internal/auth"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/circuit"
	"peoplehub/pkg/requestcontext"
)

const defaultTimeout = 10 * time.Second

// Client implements auth.Client against the hosted API. The current session
// lives in memory; remember-me persistence is the caller's concern.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	breaker *circuit.Breaker
	holder  *auth.Holder
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreaker fails calls fast while the backend is known to be down.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func New(baseURL, anonKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(anonKey) == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "hosted auth requires a backend URL and anon key")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "hosted auth backend URL is invalid")
	}
	c := &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("auth-backend"),
		holder:  auth.NewHolder(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ auth.Client = (*Client)(nil)

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}

// statusError is a non-2xx answer from the backend.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("auth backend returned %d", e.status)
	}
	return fmt.Sprintf("auth backend returned %d: %s", e.status, e.msg)
}

func (c *Client) GetSession(context.Context) (*auth.Session, error) {
	return c.holder.Current(), nil
}

func (c *Client) GetUser(ctx context.Context) (*auth.RawIdentity, error) {
	current, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.fetchUser(ctx, current.AccessToken)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, "", body, &resp)
	if err != nil {
		return nil, classify(err, "sign in failed", rejectAs(dErrors.CodeUnauthorized))
	}
	session, err := toSession(ctx, resp)
	if err != nil {
		return nil, err
	}
	c.holder.Set(session, auth.EventSignedIn)
	return session, nil
}

// SignInWithOAuth builds the provider authorization URL. The backend redirects
// back to redirectTo with the session once the user has consented.
func (c *Client) SignInWithOAuth(_ context.Context, provider, redirectTo string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "provider is required")
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/auth/v1/authorize"
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SignOut drops the local session first; the remote logout is best effort
// and a session the backend no longer knows is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.holder.Current()
	c.holder.Clear()
	if current == nil {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, current.AccessToken, nil, nil)
	var se *statusError
	if errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusNotFound || se.status == http.StatusForbidden) {
		return nil
	}
	if err != nil {
		return classify(err, "sign out failed", rejectAs(dErrors.CodeSessionInvalid))
	}
	return nil
}

func (c *Client) RefreshSession(ctx context.Context) (*auth.Session, error) {
	current, err := c.current()
	if err != nil {
		return nil, err
	}
	session, err := c.refresh(ctx, current.RefreshToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionInvalid) {
			c.holder.Clear()
		}
		return nil, err
	}
	c.holder.Set(session, auth.EventTokenRefreshed)
	return session, nil
}

func (c *Client) UpdateUser(ctx context.Context, update auth.UserUpdate) (*auth.RawIdentity, error) {
	current, err := c.current()
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if update.Password != "" {
		body["password"] = update.Password
	}
	if update.Email != "" {
		body["email"] = update.Email
	}
	if len(update.Metadata) > 0 {
		body["data"] = update.Metadata
	}
	var resp userResponse
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, current.AccessToken, body, &resp); err != nil {
		return nil, classify(err, "update user failed", func(status int) dErrors.Code {
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				return dErrors.CodeSessionInvalid
			}
			return dErrors.CodeInvalidInput
		})
	}
	identity := toIdentity(resp)
	current.Identity = *identity
	c.holder.Set(current, auth.EventUserUpdated)
	return identity, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/recover", query, "", map[string]string{"email": email}, nil)
	if err != nil {
		return classify(err, "password reset request failed", rejectAs(dErrors.CodeInvalidInput))
	}
	return nil
}

func (c *Client) SetSession(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	if session == nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "no session to restore")
	}
	if session.ExpiresWithin(requestcontext.Now(ctx), 0) {
		refreshed, err := c.refresh(ctx, session.RefreshToken)
		if err != nil {
			return nil, err
		}
		c.holder.Set(refreshed, auth.EventSignedIn)
		return refreshed, nil
	}
	identity, err := c.fetchUser(ctx, session.AccessToken)
	if err != nil {
		return nil, err
	}
	restored := session.Clone()
	restored.Identity = *identity
	c.holder.Set(restored, auth.EventSignedIn)
	return restored, nil
}

func (c *Client) Subscribe() (<-chan auth.Event, func()) {
	return c.holder.Subscribe()
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "refresh token missing")
	}
	var resp tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &resp)
	if err != nil {
		return nil, classify(err, "refresh failed", rejectAs(dErrors.CodeSessionInvalid))
	}
	return toSession(ctx, resp)
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*auth.RawIdentity, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, nil, &resp); err != nil {
		return nil, classify(err, "get user failed", rejectAs(dErrors.CodeSessionInvalid))
	}
	return toIdentity(resp), nil
}

func (c *Client) current() (*auth.Session, error) {
	current := c.holder.Current()
	if current == nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "no active session")
	}
	return current, nil
}

// do sends one request. Network failures, 5xx and 429 count against the
// breaker; other answers prove the backend is up.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	if c.breaker != nil && !c.breaker.Allow() {
		return dErrors.New(dErrors.CodeTransient, "auth backend unavailable")
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.recordFailure(ctx)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		c.recordFailure(ctx)
	} else if c.breaker != nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "auth backend circuit closed")
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er)
		return &statusError{status: resp.StatusCode, msg: er.text()}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "auth backend circuit opened")
	}
}

func rejectAs(code dErrors.Code) func(int) dErrors.Code {
	return func(int) dErrors.Code { return code }
}

// classify turns a transport error into a domain error. A 4xx answer other
// than 429 is a rejection coded by reject; everything else is transient.
func classify(err error, msg string, reject func(status int) dErrors.Code) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	var se *statusError
	if errors.As(err, &se) && se.status < http.StatusInternalServerError && se.status != http.StatusTooManyRequests {
		text := se.msg
		if text == "" {
			text = msg
		}
		return dErrors.Wrap(se, reject(se.status), text)
	}
	return dErrors.Wrap(err, dErrors.CodeTransient, msg)
}

func toIdentity(u userResponse) *auth.RawIdentity {
	return &auth.RawIdentity{ID: id.IdentityID(u.ID), Email: u.Email, Metadata: u.UserMetadata}
}

func toSession(ctx context.Context, resp tokenResponse) (*auth.Session, error) {
	if resp.AccessToken == "" || resp.User.ID == "" {
		return nil, dErrors.New(dErrors.CodeTransient, "auth backend returned an incomplete session")
	}
	return &auth.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiryOf(ctx, resp),
		Identity:     *toIdentity(resp.User),
	}, nil
}

// expiryOf prefers expires_at, then expires_in, then the token's own exp claim.
func expiryOf(ctx context.Context, resp tokenResponse) time.Time {
	switch {
	case resp.ExpiresAt > 0:
		return time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		return requestcontext.Now(ctx).Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time.UTC()
	}
	return time.Time{}
}
