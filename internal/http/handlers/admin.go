package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adreel/internal/infra/credentials"
	"adreel/internal/middleware"
)

var knownProviders = map[string]struct{}{
	credentials.ProviderGemini:  {},
	credentials.ProviderOpenAI:  {},
	credentials.ProviderRunway:  {},
	credentials.ProviderMiniMax: {},
}

type setTokenRequest struct {
	Token string `json:"token"`
}

// AdminSetIntegrationToken stores or rotates a provider API key. Admin-only.
func (a *App) AdminSetIntegrationToken(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsAdminFromContext(r.Context()) {
		a.error(w, http.StatusForbidden, "forbidden", "admin access required")
		return
	}
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if _, ok := knownProviders[provider]; !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown provider")
		return
	}
	var req setTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "token is required")
		return
	}
	if err := a.Credentials.SetToken(r.Context(), provider, req.Token); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to store token")
		return
	}
	a.Logger.Info().Str("provider", provider).Str("admin", middleware.UserEmailFromContext(r.Context())).Msg("admin: integration token updated")
	a.json(w, http.StatusOK, map[string]any{"provider": provider, "updated": true})
}

// AdminIntegrationStatus reports whether a key is on file, never the key itself.
func (a *App) AdminIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsAdminFromContext(r.Context()) {
		a.error(w, http.StatusForbidden, "forbidden", "admin access required")
		return
	}
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if _, ok := knownProviders[provider]; !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown provider")
		return
	}
	token, err := a.Credentials.Token(r.Context(), provider)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read token")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"provider": provider, "configured": token != ""})
}
