package live

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewServer serves the hub on /ws. It runs beside the Fiber app because
// gorilla/websocket needs a net/http hijacker.
func NewServer(addr string, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, "live"),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
