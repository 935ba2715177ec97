package auth

import (
	"strings"

	"github.com/chromedp/cdproto/network"
)

// BuildCookieHeader serializes every cookie from the browser context into a
// single "name=value; name=value" header, preserving the order Chrome
// reported them in. The header is replayed verbatim on all API calls.
func BuildCookieHeader(cookies []*network.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
	}
	return b.String()
}

// FindCookie returns the value of the named cookie, or "" when absent.
func FindCookie(cookies []*network.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
