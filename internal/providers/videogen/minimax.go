package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MiniMax splits completion into two steps: the status query reports Success
// with a file id, and the media URL comes from a separate file-retrieve call.
// The adapter folds both behind one Poll so callers never see the seam.

const (
	minimaxProviderName   = "minimax"
	minimaxDefaultTimeout = 30 * time.Second
	minimaxMaxPromptChars = 2000
)

var minimaxDurations = []int{6, 10}

type MiniMaxOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type MiniMaxAdapter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewMiniMaxAdapter(opts MiniMaxOptions) (*MiniMaxAdapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("minimax api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.minimax.io"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "MiniMax-Hailuo-02"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: minimaxDefaultTimeout}
	}
	return &MiniMaxAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

func (a *MiniMaxAdapter) Name() string { return minimaxProviderName }

func (a *MiniMaxAdapter) MaxPromptChars() int { return minimaxMaxPromptChars }

func (a *MiniMaxAdapter) Normalize(req Request) Request {
	req.DurationSeconds = snapDuration(req.DurationSeconds, minimaxDurations)
	req.ContinuityStrength = clampStrength(req.ContinuityStrength)
	switch req.Quality {
	case "standard", "high":
	default:
		req.Quality = "standard"
	}
	// 1080P renders are capped at 6 seconds upstream.
	if req.Quality == "high" && req.DurationSeconds > 6 {
		req.DurationSeconds = 6
	}
	return req
}

type minimaxSubmitRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	FirstFrameImage string `json:"first_frame_image,omitempty"`
	Duration        int    `json:"duration"`
	Resolution      string `json:"resolution"`
	PromptOptimizer bool   `json:"prompt_optimizer"`
}

type minimaxBaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type minimaxSubmitResponse struct {
	TaskID   string          `json:"task_id"`
	BaseResp minimaxBaseResp `json:"base_resp"`
}

type minimaxQueryResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	FileID   string          `json:"file_id,omitempty"`
	BaseResp minimaxBaseResp `json:"base_resp"`
}

type minimaxFileResponse struct {
	File struct {
		FileID      json.Number `json:"file_id"`
		DownloadURL string      `json:"download_url"`
	} `json:"file"`
	BaseResp minimaxBaseResp `json:"base_resp"`
}

func (a *MiniMaxAdapter) Submit(ctx context.Context, req Request) (string, error) {
	req = a.Normalize(req)
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("minimax: prompt is required")
	}

	resolution := "768P"
	if req.Quality == "high" {
		resolution = "1080P"
	}
	payload := minimaxSubmitRequest{
		Model:           a.model,
		Prompt:          req.Prompt,
		FirstFrameImage: req.ReferenceImageURL,
		Duration:        req.DurationSeconds,
		Resolution:      resolution,
		PromptOptimizer: false,
	}

	var out minimaxSubmitResponse
	if err := a.invoke(ctx, http.MethodPost, "/v1/video_generation", payload, &out); err != nil {
		return "", fmt.Errorf("minimax: submit: %w", err)
	}
	if out.BaseResp.StatusCode != 0 {
		return "", fmt.Errorf("minimax: submit rejected: %s", out.BaseResp.StatusMsg)
	}
	if out.TaskID == "" {
		return "", errors.New("minimax: submit returned no task id")
	}
	return out.TaskID, nil
}

func (a *MiniMaxAdapter) Poll(ctx context.Context, nativeID string) (Status, error) {
	if strings.TrimSpace(nativeID) == "" {
		return Status{}, errors.New("minimax: task id is required")
	}

	var query minimaxQueryResponse
	path := "/v1/query/video_generation?task_id=" + url.QueryEscape(nativeID)
	if err := a.invoke(ctx, http.MethodGet, path, nil, &query); err != nil {
		a.logger.Warn().Err(err).Str("task_id", nativeID).Msg("minimax: poll unreachable, treating as pending")
		return Status{Phase: PhasePending, NativeStatus: "Unreachable"}, nil
	}

	switch query.Status {
	case "Success":
		result, err := a.fetchResult(ctx, query.FileID)
		if err != nil {
			// Finished but the result payload is not retrievable yet; report
			// pending so the next poll retries the fetch.
			a.logger.Warn().Err(err).Str("task_id", nativeID).Msg("minimax: result fetch failed, treating as pending")
			return Status{Phase: PhasePending, NativeStatus: query.Status}, nil
		}
		return Status{Phase: PhaseReady, NativeStatus: query.Status, Result: result}, nil
	case "Fail":
		reason := query.BaseResp.StatusMsg
		if reason == "" {
			reason = "generation failed"
		}
		return Status{Phase: PhaseFailed, NativeStatus: query.Status, Reason: reason}, nil
	case "Queueing", "Preparing", "Processing":
		return Status{Phase: PhasePending, NativeStatus: query.Status}, nil
	default:
		return Status{Phase: PhasePending, NativeStatus: query.Status}, nil
	}
}

func (a *MiniMaxAdapter) fetchResult(ctx context.Context, fileID string) (*Result, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, errors.New("missing file id")
	}
	var out minimaxFileResponse
	path := "/v1/files/retrieve?file_id=" + url.QueryEscape(fileID)
	if err := a.invoke(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.File.DownloadURL == "" {
		return nil, errors.New("file retrieve returned no download url")
	}
	return &Result{URL: out.File.DownloadURL}, nil
}

func (a *MiniMaxAdapter) invoke(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Adapter = (*MiniMaxAdapter)(nil)
