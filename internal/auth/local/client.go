package local

import (
	"context"

	"peoplehub/internal/auth"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/requestcontext"
)

// Client is the auth.Client of the local backend. It calls the backend in
// process and keeps the current session in memory.
type Client struct {
	backend *Backend
	holder  *auth.Holder
}

func NewClient(backend *Backend) *Client {
	return &Client{backend: backend, holder: auth.NewHolder()}
}

var _ auth.Client = (*Client)(nil)

func (c *Client) GetSession(context.Context) (*auth.Session, error) {
	return c.holder.Current(), nil
}

func (c *Client) GetUser(ctx context.Context) (*auth.RawIdentity, error) {
	current, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.backend.User(ctx, current.AccessToken)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := c.backend.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.holder.Set(session, auth.EventSignedIn)
	return session, nil
}

func (c *Client) SignInWithOAuth(context.Context, string, string) (string, error) {
	return "", dErrors.New(dErrors.CodeBadRequest, "oauth providers are not available with local auth")
}

// SignOut always drops the local session; a backend failure is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.holder.Current()
	c.holder.Clear()
	if current == nil {
		return nil
	}
	return c.backend.Logout(ctx, current.AccessToken)
}

func (c *Client) RefreshSession(ctx context.Context) (*auth.Session, error) {
	current, err := c.current()
	if err != nil {
		return nil, err
	}
	session, err := c.backend.RefreshGrant(ctx, current.RefreshToken)
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
	identity, err := c.backend.UpdateUser(ctx, current.AccessToken, update)
	if err != nil {
		return nil, err
	}
	current.Identity = *identity
	c.holder.Set(current, auth.EventUserUpdated)
	return identity, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return c.backend.Recover(ctx, email, redirectTo)
}

// SetSession adopts a persisted session. An expired access token is
// exchanged through the refresh token.
func (c *Client) SetSession(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	if session == nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "no session to restore")
	}
	if session.ExpiresWithin(requestcontext.Now(ctx), 0) {
		refreshed, err := c.backend.RefreshGrant(ctx, session.RefreshToken)
		if err != nil {
			return nil, err
		}
		c.holder.Set(refreshed, auth.EventSignedIn)
		return refreshed, nil
	}
	identity, err := c.backend.User(ctx, session.AccessToken)
	if err != nil {
		return nil, err
	}
	restored := session.Clone()
	restored.Identity = *identity
	c.holder.Set(restored, auth.EventSignedIn)
	return restored, nil
}

// VerifyRecovery signs in with a recovery token from a recovery link.
func (c *Client) VerifyRecovery(ctx context.Context, token string) (*auth.Session, error) {
	session, err := c.backend.VerifyRecovery(ctx, token)
	if err != nil {
		return nil, err
	}
	c.holder.Set(session, auth.EventSignedIn)
	return session, nil
}

func (c *Client) Subscribe() (<-chan auth.Event, func()) {
	return c.holder.Subscribe()
}

func (c *Client) current() (*auth.Session, error) {
	current := c.holder.Current()
	if current == nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "no active session")
	}
	return current, nil
}
