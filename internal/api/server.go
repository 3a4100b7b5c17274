package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route. allowPatterns is the optional login domain
// allow-list (glob patterns); empty allows all domains.
func NewRouter(svc Service, allowPatterns []string) (*mux.Router, error) {
	h, err := NewHandler(svc, allowPatterns)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(RequestLogger)

	v1.HandleFunc("/sessions/login", h.Login).Methods(http.MethodPost)
	v1.HandleFunc("/sessions", h.List).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{domain}", h.Get).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{domain}", h.Delete).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{domain}/check", h.Check).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{domain}/cookies", h.Cookies).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{domain}/events", h.Events).Methods(http.MethodGet)

	return r, nil
}
