// Package identity derives the per-caller key used for quota accounting and
// conversation history, and the calendar-month accounting period it is
// metered under.
package identity

import (
	"net"
	"strings"
	"time"
)

// Unknown is the sentinel identity when no identifier of any kind is
// available.
const Unknown = "unknown"

// Resolve returns the identity key for a request. A caller-supplied
// identifier wins when non-empty; it is trusted verbatim and not
// authenticated, so unrelated callers can collide or impersonate each other.
// Otherwise the first hop of the forwarded-for chain is used, then the direct
// connection address, then Unknown.
func Resolve(userID, forwardedFor, remoteAddr string) string {
	if userID != "" {
		return userID
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}
	return Unknown
}

// Period returns the accounting-period label for t: the UTC calendar month as
// "YYYY-MM". Metered usage resets when the label changes.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}
