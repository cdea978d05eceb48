package handler

import (
	"strings"

	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
)

// LinkRequest is the body of POST /v1/admin/profiles/{profileID}/emails.
type LinkRequest struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	IsPrimary  bool   `json:"is_primary"`

	parsedIdentity id.IdentityID
}

func (r *LinkRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	identityID, err := id.ParseIdentityID(r.IdentityID)
	if err != nil {
		return err
	}
	r.parsedIdentity = identityID
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	return nil
}

func (r *LinkRequest) ParsedIdentityID() id.IdentityID {
	return r.parsedIdentity
}
