// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"

	"github.com/danielhkuo/quickpoll/auth"
	"github.com/danielhkuo/quickpoll/models"
)

// Access is the caller's mode for one poll.
//
// A request is view-only only when it carries a valid view token for this
// exact poll; direct links are never view-only. Only view-only requests are
// asked for the poll password.
type Access struct {
	ViewOnly         bool
	RequiresPassword bool
}

func (e *Engine) access(poll models.Poll, viewToken string) Access {
	viewOnly := viewToken != "" && e.signer.Verify(viewToken, poll.UniqueID)
	return Access{
		ViewOnly:         viewOnly,
		RequiresPassword: viewOnly && poll.HasPassword(),
	}
}

// checkPassword verifies the supplied password against the poll's hash.
// purpose completes "Password is required to ... this poll".
func checkPassword(poll models.Poll, password, purpose string) error {
	if !poll.HasPassword() {
		return nil
	}

	err := auth.CheckPassword(*poll.PasswordHash, password)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrEmptyPassword):
		return &Error{
			Kind:             KindForbidden,
			Message:          "Password is required to " + purpose + " this poll",
			RequiresPassword: true,
		}
	default:
		return &Error{
			Kind:             KindForbidden,
			Message:          MsgIncorrectPassword,
			RequiresPassword: true,
		}
	}
}
