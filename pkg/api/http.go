package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"atelier/pkg/conversation"
	"atelier/pkg/telemetry"
)

// NewRouter builds the full HTTP surface over the conversation service.
func NewRouter(svc *conversation.Service) *mux.Router {
	s := &server{svc: svc}
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/projects", s.createProject).Methods(http.MethodPost)
	v1.HandleFunc("/projects", s.listProjects).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}", s.getProject).Methods(http.MethodGet)
	v1.HandleFunc("/projects/{id}", s.deleteProject).Methods(http.MethodDelete)
	v1.HandleFunc("/projects/{id}/messages", s.submitMessage).Methods(http.MethodPost)
	v1.HandleFunc("/projects/{id}/messages", s.listMessages).Methods(http.MethodGet)
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// metricsMiddleware counts requests by mux route template and status class.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		telemetry.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%dxx", srw.status/100)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
