package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"adreel/internal/infra"
	"adreel/internal/sqlinline"
)

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderRunway  = "runway"
	ProviderMiniMax = "minimax"
)

// Store resolves provider API keys persisted in the database. Environment
// variables take precedence; the store is the fallback for deployments where
// keys are rotated without restarts.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	return s.upsert(ctx, provider, token, nil)
}

// Resolve returns the env value when set, otherwise the stored token.
func (s *Store) Resolve(ctx context.Context, provider, envValue string) string {
	if v := strings.TrimSpace(envValue); v != "" {
		return v
	}
	token, err := s.Token(ctx, provider)
	if err != nil {
		return ""
	}
	return token
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
