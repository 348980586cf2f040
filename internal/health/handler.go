// Package health exposes the liveness probe endpoint.
package health

import "net/http"

// Handler reports process liveness. It does not touch the database or redis.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
