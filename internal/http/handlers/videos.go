package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adreel/internal/middleware"
	"adreel/internal/providers/prompt"
	"adreel/internal/providers/videogen"
	"adreel/internal/supervisor"
	"adreel/internal/usage"
)

type videoGenerateRequest struct {
	Provider           string  `json:"provider"`
	Prompt             string  `json:"prompt"`
	VisualIdentity     string  `json:"visual_identity"`
	ShotBreakdown      string  `json:"shot_breakdown"`
	Script             string  `json:"script"`
	DurationSeconds    int     `json:"duration_seconds"`
	AspectRatio        string  `json:"aspect_ratio"`
	Quality            string  `json:"quality"`
	ReferenceImageURL  string  `json:"reference_image_url"`
	NegativePrompt     string  `json:"negative_prompt"`
	Audio              bool    `json:"audio"`
	ContinuityStrength float64 `json:"continuity_strength"`
}

type videoGenerateResponse struct {
	JobHandle        string   `json:"job_handle"`
	Provider         string   `json:"provider"`
	State            string   `json:"state"`
	DurationSeconds  int      `json:"duration_seconds"`
	AspectRatio      string   `json:"aspect_ratio"`
	Quality          string   `json:"quality"`
	Parts            []string `json:"parts"`
	ContinuityAnchor string   `json:"continuity_anchor,omitempty"`
	PromptSource     string   `json:"prompt_source"`
	RemainingQuota   int      `json:"remaining_quota"`
}

type jobStatusResponse struct {
	JobHandle    string       `json:"job_handle"`
	State        string       `json:"state"`
	Attempts     int          `json:"attempts"`
	NativeStatus string       `json:"native_status,omitempty"`
	Result       *videoResult `json:"result,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

type videoResult struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// VideosGenerate admits one clip generation: quota gate, prompt composition,
// per-provider fitting, submission, a single quota increment, then a
// supervised polling loop keyed by the returned job handle.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	hasCompose := strings.TrimSpace(req.VisualIdentity) != "" &&
		strings.TrimSpace(req.ShotBreakdown) != "" &&
		strings.TrimSpace(req.Script) != ""
	if strings.TrimSpace(req.Prompt) == "" && !hasCompose {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt or visual_identity, shot_breakdown and script are required")
		return
	}
	if req.DurationSeconds <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "duration_seconds must be positive")
		return
	}

	adapter, ok := a.resolveAdapter(req.Provider)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
		return
	}

	// The quota gate runs before any provider traffic: a refused request must
	// cost nothing.
	decision, err := a.Guard.CheckLimit(r.Context(), userID, usage.KindVideoGeneration)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "quota check failed")
		return
	}
	if !decision.Allowed {
		a.recordEvent(r, userID, adapter.Name(), false, "limit_reached")
		a.errorWithDetails(w, http.StatusPaymentRequired, "limit_reached", "monthly generation limit reached", map[string]any{
			"limit": decision.Limit,
			"used":  decision.Used,
		})
		return
	}

	composed := a.Composer.Compose(r.Context(), prompt.ComposeInput{
		VisualIdentity:  req.VisualIdentity,
		ShotBreakdown:   req.ShotBreakdown,
		Script:          req.Script,
		DurationSeconds: req.DurationSeconds,
	}, req.Prompt)
	parts := make([]string, len(composed.Parts))
	for i, part := range composed.Parts {
		parts[i] = a.Fitter.Fit(r.Context(), part, adapter.MaxPromptChars())
	}

	normalized := adapter.Normalize(videogen.Request{
		Prompt:             parts[0],
		ReferenceImageURL:  req.ReferenceImageURL,
		DurationSeconds:    req.DurationSeconds,
		AspectRatio:        req.AspectRatio,
		Quality:            req.Quality,
		NegativePrompt:     req.NegativePrompt,
		Audio:              req.Audio,
		ContinuityStrength: req.ContinuityStrength,
	})

	nativeID, err := adapter.Submit(r.Context(), normalized)
	if err != nil {
		a.Logger.Error().Err(err).Str("provider", adapter.Name()).Msg("videos: submission rejected")
		a.recordEvent(r, userID, adapter.Name(), false, err.Error())
		a.error(w, http.StatusBadGateway, "provider_error", "provider rejected the submission")
		return
	}

	// One increment per accepted submission, never per poll. A later job
	// failure does not refund it.
	if err := a.Guard.Increment(r.Context(), userID, usage.KindVideoGeneration); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("videos: quota increment failed after submission")
	}
	a.recordEvent(r, userID, adapter.Name(), true, "")

	handle := videogen.JobHandle{Provider: adapter.Name(), NativeID: nativeID}
	snap := a.Jobs.Watch(handle)

	a.json(w, http.StatusAccepted, videoGenerateResponse{
		JobHandle:        handle.String(),
		Provider:         adapter.Name(),
		State:            string(snap.State),
		DurationSeconds:  normalized.DurationSeconds,
		AspectRatio:      normalized.AspectRatio,
		Quality:          normalized.Quality,
		Parts:            parts,
		ContinuityAnchor: composed.ContinuityAnchor,
		PromptSource:     composed.Source,
		RemainingQuota:   decision.Remaining - 1,
	})
}

// VideoJobStatus reports the supervised view of a job. Handles unknown to
// this process, for example after a restart, fall back to one direct poll so
// a client can always resolve a handle it holds.
func (a *App) VideoJobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	handle, err := videogen.ParseJobHandle(chi.URLParam(r, "handle"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid job handle")
		return
	}
	adapter, ok := a.Providers.Get(handle.Provider)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
		return
	}

	if snap, ok := a.Jobs.Snapshot(handle.String()); ok {
		a.json(w, http.StatusOK, snapshotResponse(snap))
		return
	}

	status, err := adapter.Poll(r.Context(), handle.NativeID)
	if err != nil {
		a.error(w, http.StatusBadGateway, "provider_error", "provider status check failed")
		return
	}
	resp := jobStatusResponse{
		JobHandle:    handle.String(),
		State:        phaseState(status.Phase),
		NativeStatus: status.NativeStatus,
		Reason:       status.Reason,
	}
	if status.Result != nil {
		resp.Result = &videoResult{URL: status.Result.URL, DurationSeconds: status.Result.DurationSeconds}
	}
	a.json(w, http.StatusOK, resp)
}

// VideoJobStop abandons the local polling loop. The remote job is untouched
// and any consumed quota stays consumed.
func (a *App) VideoJobStop(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	handle, err := videogen.ParseJobHandle(chi.URLParam(r, "handle"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid job handle")
		return
	}
	a.Jobs.Stop(handle.String())
	a.json(w, http.StatusOK, map[string]any{"job_handle": handle.String(), "stopped": true})
}

// VideoProviders lists the configured back-ends and their prompt budgets.
func (a *App) VideoProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		Name           string `json:"name"`
		MaxPromptChars int    `json:"max_prompt_chars"`
	}
	items := make([]providerInfo, 0)
	for _, name := range a.Providers.Names() {
		if adapter, ok := a.Providers.Get(name); ok {
			items = append(items, providerInfo{Name: adapter.Name(), MaxPromptChars: adapter.MaxPromptChars()})
		}
	}
	a.json(w, http.StatusOK, map[string]any{"providers": items})
}

// UsageStatus is a read-only quota view; it never consumes.
func (a *App) UsageStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	decision, err := a.Guard.CheckLimit(r.Context(), userID, usage.KindVideoGeneration)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "quota check failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"allowed":   decision.Allowed,
		"limit":     decision.Limit,
		"used":      decision.Used,
		"remaining": decision.Remaining,
	})
}

func (a *App) resolveAdapter(name string) (videogen.Adapter, bool) {
	if strings.TrimSpace(name) == "" {
		return a.Providers.Default()
	}
	return a.Providers.Get(strings.ToLower(strings.TrimSpace(name)))
}

func (a *App) recordEvent(r *http.Request, userID, provider string, success bool, errMsg string) {
	metadata := map[string]any{
		"locale": middleware.LocaleFromContext(r.Context()),
	}
	if country := middleware.CountryFromContext(r.Context()); country != "" {
		metadata["country"] = country
	}
	a.Usage.Record(usage.Event{
		UserID:       userID,
		Feature:      usage.KindVideoGeneration,
		Provider:     provider,
		Success:      success,
		ErrorMessage: errMsg,
		Metadata:     metadata,
	})
}

func snapshotResponse(snap supervisor.Snapshot) jobStatusResponse {
	resp := jobStatusResponse{
		JobHandle:    snap.Handle,
		State:        string(snap.State),
		Attempts:     snap.Attempts,
		NativeStatus: snap.NativeStatus,
		Reason:       snap.Reason,
	}
	if snap.Result != nil {
		resp.Result = &videoResult{URL: snap.Result.URL, DurationSeconds: snap.Result.DurationSeconds}
	}
	return resp
}

func phaseState(phase videogen.Phase) string {
	switch phase {
	case videogen.PhaseReady:
		return string(supervisor.StateReady)
	case videogen.PhaseFailed:
		return string(supervisor.StateFailed)
	default:
		return string(supervisor.StatePolling)
	}
}
