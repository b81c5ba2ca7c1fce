package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ExpiresFromResponse works out how long a response may be cached.
// Cache-Control takes precedence over Expires; no-store and no-cache yield the
// current time (do not cache). Without either header defaultTTL applies.
func ExpiresFromResponse(resp *http.Response, defaultTTL time.Duration) time.Time {
	now := time.Now()
	if resp == nil {
		return now
	}

	if cc := resp.Header.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(strings.ToLower(directive))
			switch {
			case directive == "no-store" || directive == "no-cache":
				return now
			case strings.HasPrefix(directive, "max-age="):
				if seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil {
					if seconds <= 0 {
						return now
					}
					return now.Add(time.Duration(seconds) * time.Second)
				}
			}
		}
	}

	return parseExpires(resp.Header, defaultTTL)
}

// parseExpires parses the Expires header.
// Returns the parsed expiration time, or now + defaultTTL if the header is
// missing or malformed.
func parseExpires(headers http.Header, defaultTTL time.Duration) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(defaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(defaultTTL)
	}

	// Already expired - do not cache
	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}
