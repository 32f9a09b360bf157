package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/pliu/chattycore/internal/chat"
	"github.com/pliu/chattycore/internal/httpapi"
	"github.com/pliu/chattycore/internal/ws"
)

// port resolves spec.md §6's PORT environment variable, defaulting to 3001.
func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "3001"
}

// statePath resolves where the Store's single JSON document lives
// (spec.md §4.1, §6).
func statePath() string {
	if p := os.Getenv("STATE_FILE"); p != "" {
		return p
	}
	return "chattycore.json"
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	store := chat.NewStore(statePath())
	hub := ws.NewHub(store)

	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.NotFoundHandler()
	r.Use(loggingMiddleware)
	r.HandleFunc("/health", httpapi.Health(store)).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", hub.ServeWS)

	addr := "0.0.0.0:" + port()
	log.Println("Starting chattycore on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
