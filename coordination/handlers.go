package coordination

import (
	"encoding/json"
	"net/http"

	"github.com/hugolhafner/go-streams-testing/logger"
)

func newMux(reg *Registry, l logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /nodes", func(w http.ResponseWriter, r *http.Request) {
			var req RegisterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
			if req.Node.ID == "" || req.Node.Kind == "" || req.Node.Addr == "" {
				http.Error(w, "missing id/kind/addr", http.StatusBadRequest)
				return
			}

			reg.Register(req.Node)
			l.Debug("Node registered", "kind", req.Node.Kind, "id", req.Node.ID, "addr", req.Node.Addr)
			w.WriteHeader(http.StatusNoContent)
		},
	)

	mux.HandleFunc(
		"DELETE /nodes/{kind}/{id}", func(w http.ResponseWriter, r *http.Request) {
			kind, id := r.PathValue("kind"), r.PathValue("id")
			if !reg.Deregister(kind, id) {
				http.Error(w, "not registered", http.StatusNotFound)
				return
			}

			l.Debug("Node deregistered", "kind", kind, "id", id)
			w.WriteHeader(http.StatusNoContent)
		},
	)

	mux.HandleFunc(
		"GET /nodes", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(ListResponse{Nodes: reg.Nodes(r.URL.Query().Get("kind"))})
		},
	)

	mux.HandleFunc(
		"GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	)

	return mux
}
