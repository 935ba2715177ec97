package schemas

import (
	"time"
)

// Credentials identify one login principal of the target application.
type Credentials struct {
	Identity string `json:"identity"`
	Secret   string `json:"-"`
}

// Session is the bundle of artifacts harvested from one successful UI login.
// It is immutable after creation; a re-authentication produces a new Session
// rather than mutating the old one.
type Session struct {
	// Identity is the login principal (an email address).
	Identity string `json:"identity"`

	// BearerToken is the opaque token extracted from the application's token
	// cookie. Sent as "Authorization: Bearer <token>" on every API call.
	BearerToken string `json:"bearer_token"`

	// CookieHeader is the full "name=value; name=value" cookie string captured
	// from the browser context at login time and replayed verbatim.
	CookieHeader string `json:"cookie_header"`

	// CreatedAt is the time of successful authentication. Freshness checks are
	// computed against this value.
	CreatedAt time.Time `json:"created_at"`

	// BaseURL is the application origin the session was established against.
	BaseURL string `json:"base_url"`

	// ExpiresInHint is the server-advertised token lifetime. It is recorded for
	// observability but not enforced; the cache freshness window is the only
	// value that gates reuse. See the authcache configuration.
	ExpiresInHint time.Duration `json:"expires_in_hint"`
}

// Age returns how long ago the session was established.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Fresh reports whether the session is still within the freshness window.
func (s *Session) Fresh(now time.Time, window time.Duration) bool {
	return s.Age(now) < window
}
