package handler

import (
	"errors"
	"net/http"
	"time"

	"peoplehub/internal/profile/models"
	"peoplehub/internal/session"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/httputil"
)

// SessionResponse is the reactive session object as seen by the UI shell.
type SessionResponse struct {
	State           string           `json:"state"`
	IsAuthenticated bool             `json:"is_authenticated"`
	Loading         bool             `json:"loading"`
	Profile         *ProfileResponse `json:"profile"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	Error           *ErrorResponse   `json:"error,omitempty"`
	Version         uint64           `json:"version"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type ProfileResponse struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	FullName         string           `json:"full_name"`
	DisplayName      string           `json:"display_name"`
	Role             string           `json:"role"`
	EmploymentStatus string           `json:"employment_status"`
	EmployeeID       string           `json:"employee_id,omitempty"`
	Position         string           `json:"position,omitempty"`
	Department       string           `json:"department,omitempty"`
	Manager          *ManagerResponse `json:"manager,omitempty"`
	Permissions      []string         `json:"permissions"`
	LastLogin        *time.Time       `json:"last_login,omitempty"`
}

type ManagerResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Position string `json:"position,omitempty"`
}

// ActionResponse answers the session mutations. Failures carry the error code
// and the status code that matches it.
type ActionResponse struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message,omitempty"`
	RedirectURL      string           `json:"redirect_url,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorDescription string           `json:"error_description,omitempty"`
	Session          *SessionResponse `json:"session,omitempty"`
}

type PermissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

func FromSnapshot(snap session.Snapshot) *SessionResponse {
	resp := &SessionResponse{
		State:           string(snap.State),
		IsAuthenticated: snap.IsAuthenticated(),
		Loading:         snap.Loading(),
		Profile:         FromProfile(snap.Profile),
		Version:         snap.Version,
	}
	if snap.Session != nil && !snap.Session.ExpiresAt.IsZero() {
		expires := snap.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	if snap.Err != nil {
		resp.Error = &ErrorResponse{Code: string(dErrors.CodeOf(snap.Err)), Message: describe(snap.Err)}
	}
	return resp
}

func FromProfile(p *models.Profile) *ProfileResponse {
	if p == nil {
		return nil
	}
	resp := &ProfileResponse{
		ID:               string(p.ID),
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		FullName:         p.FullName,
		DisplayName:      p.DisplayName,
		Role:             string(p.Role),
		EmploymentStatus: string(p.EmploymentStatus),
		EmployeeID:       string(p.LinkedEmployeeID),
		Position:         p.Position,
		Department:       p.Department,
		LastLogin:        p.LastLogin,
		Permissions:      make([]string, 0, len(p.Permissions)),
	}
	for _, perm := range p.Permissions {
		resp.Permissions = append(resp.Permissions, string(perm))
	}
	if p.Manager != nil {
		resp.Manager = &ManagerResponse{
			ID:       string(p.Manager.ID),
			Name:     p.Manager.Name,
			Email:    p.Manager.Email,
			Position: p.Manager.Position,
		}
	}
	return resp
}

func describe(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && dErrors.CodeOf(err) != dErrors.CodeInternal {
		return de.Message
	}
	return ""
}

func writeFailure(w http.ResponseWriter, err error, snap *SessionResponse) {
	status, code := httputil.StatusFor(err)
	resp := &ActionResponse{Error: code, Session: snap}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = describe(err)
	}
	httputil.WriteJSON(w, status, resp)
}
