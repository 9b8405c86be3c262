package router

import (
	"net/http"
	"strings"

	"github.com/imageforge/backend/internal/auth"
	"github.com/imageforge/backend/internal/dashboard"
	"github.com/imageforge/backend/internal/registry"
)

// New returns an http.Handler serving the JWT-authenticated dashboard API
// under /api. The API-key generation surface lives under /v1 and is wired
// separately in main.
func New(authHandler *auth.Handler, dashHandler *dashboard.Handler, registryHandler *registry.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api"
	mux.HandleFunc(base+"/auth/register", authHandler.Register)
	mux.HandleFunc(base+"/auth/login", authHandler.Login)

	mux.HandleFunc(base+"/dashboard/me", methodGET(dashHandler.GetMe))
	mux.HandleFunc(base+"/dashboard/settings", methodPATCH(dashHandler.UpdateSettings))
	mux.HandleFunc(base+"/dashboard/transactions", methodGET(dashHandler.ListTransactions))
	mux.HandleFunc(base+"/dashboard/credits", methodPOST(dashHandler.TopUpCredits))
	mux.HandleFunc(base+"/dashboard/artifacts", methodGET(dashHandler.ListArtifacts))
	mux.HandleFunc(base+"/dashboard/generations", methodGET(dashHandler.ListGenerations))

	mux.HandleFunc(base+"/dashboard/api-keys", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dashHandler.ListAPIKeys(w, r)
		case http.MethodPost:
			dashHandler.CreateAPIKey(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc(base+"/dashboard/api-keys/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && strings.Count(r.URL.Path, "/") >= 4 {
			dashHandler.DeleteAPIKey(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc(base+"/dashboard/models", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			registryHandler.ListModels(w, r)
		case http.MethodPost:
			registryHandler.CreateModel(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc(base+"/dashboard/models/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			registryHandler.UpdateModel(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	return mux
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPATCH(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
