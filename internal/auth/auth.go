// Package auth establishes application sessions by driving the real login
// form in a headless browser and harvesting the resulting cookies.
package auth

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/caretqa/api/schemas"
)

// Authenticator produces one fresh Session per call. Implementations do not
// retry internally; every failure mode is terminal for that call.
type Authenticator interface {
	Login(ctx context.Context, creds schemas.Credentials) (*schemas.Session, error)
}

// AuthError reason codes.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonMissingToken       = "missing_token_cookie"
	ReasonTimeout            = "login_timeout"
)

// AuthError is returned when the login flow fails. Reason is one of the
// constants above so callers can branch without string matching.
type AuthError struct {
	Reason   string
	Identity string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed for %s (%s): %v", e.Identity, e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed for %s (%s)", e.Identity, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }
