package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"adreel/internal/infra"
	"adreel/internal/infra/credentials"
	"adreel/internal/middleware"
	"adreel/internal/providers/prompt"
	"adreel/internal/providers/videogen"
	"adreel/internal/supervisor"
	"adreel/internal/usage"
)

// App bundles every dependency the HTTP handlers need.
type App struct {
	Config      *infra.Config
	Logger      zerolog.Logger
	SQL         infra.SQLExecutor
	Providers   *videogen.Registry
	Composer    *prompt.Composer
	Fitter      *prompt.Fitter
	Guard       usage.Guard
	Usage       *usage.Recorder
	Jobs        *supervisor.Supervisor
	Credentials *credentials.Store
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func (a *App) errorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message, Details: details}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
