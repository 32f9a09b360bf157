// Package httpapi is the one HTTP surface spec.md §6 allows beyond the
// websocket upgrade: a liveness probe. Grounded in the teacher's main.go
// route-registration style (gorilla/mux, one HandleFunc per route).
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/pliu/chattycore/internal/chat"
)

// Health returns a handler for GET /health: {status, users, online}
// (spec.md §6). OPTIONS gets a permissive CORS response; anything else the
// mux router doesn't route here falls through to its own 404.
func Health(store *chat.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"users":  store.UserCount(),
			"online": store.OnlineCount(),
		})
	}
}
