package ws

import (
	"net/http"
	"strings"
)

// OriginChecker returns a CheckOrigin function for a websocket.Upgrader that
// accepts requests without an Origin header and those whose origin is in
// allowed (case-insensitive).
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No Origin header: same-origin request or non-browser client.
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
