package handler

import (
	"strings"

	"peoplehub/internal/session"
	dErrors "peoplehub/pkg/domain-errors"
)

const maxPasswordLength = 256

// LoginRequest is the body of POST /v1/session/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "password is too long")
	}
	return nil
}

// OAuthRequest is the body of POST /v1/session/oauth.
type OAuthRequest struct {
	Provider string `json:"provider"`
}

func (r *OAuthRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	if r.Provider == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "provider is required")
	}
	return nil
}

// ResetRequest is the body of POST /v1/session/password/reset.
type ResetRequest struct {
	Email string `json:"email"`
}

func (r *ResetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	return nil
}

// CompleteResetRequest is the body of POST /v1/session/password/complete.
type CompleteResetRequest struct {
	Password string `json:"password"`
}

func (r *CompleteResetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeInvalidInput, "password is too long")
	}
	return nil
}

// SignalRequest is the body of POST /v1/session/signals.
type SignalRequest struct {
	Kind string `json:"kind"`

	parsed session.Signal
}

func (r *SignalRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	sig, err := session.ParseSignal(strings.ToLower(strings.TrimSpace(r.Kind)))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "kind must be one of activity, visible, focus, online")
	}
	r.parsed = sig
	return nil
}

func (r *SignalRequest) Signal() session.Signal {
	return r.parsed
}
