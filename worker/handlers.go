package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

func (n *Node) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(
		"GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(
				w, Info{
					ID:       n.id,
					GroupID:  n.cfg.GroupID,
					Addr:     n.Addr(),
					Upstream: n.upstream.String(),
				},
			)
		},
	)

	mux.HandleFunc(
		"GET /health", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := n.client.Ping(ctx); err != nil {
				n.logger.Debug("Health check failed", "error", err)
				http.Error(w, "brokers unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	)

	mux.HandleFunc(
		"GET /connectors", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, ConnectorsResponse{Tasks: n.Tasks()})
		},
	)

	mux.HandleFunc(
		"GET /tasks", func(w http.ResponseWriter, r *http.Request) {
			statuses, err := n.TaskStatuses(r.Context())
			if err != nil {
				n.logger.Debug("Task status lookup failed", "error", err)
				http.Error(w, "task status unavailable", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, TasksResponse{Tasks: statuses})
		},
	)

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
