package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// NewUpgrader returns an upgrader accepting browser origins from allowed. A
// "*" entry allows any origin. Requests without an Origin header come from
// non-browser clients and are accepted.
func NewUpgrader(allowed []string) websocket.Upgrader {
	allowAll := lo.Contains(allowed, "*")

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			return lo.ContainsBy(allowed, func(o string) bool {
				return strings.EqualFold(strings.TrimSuffix(o, "/"), origin)
			})
		},
	}
}
