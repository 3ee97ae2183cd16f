package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runway's task endpoint returns the output URL inline with the terminal
// status, so a single poll is enough to surface a Ready result.

const (
	runwayProviderName   = "runway"
	runwayDefaultTimeout = 30 * time.Second
	runwayMaxPromptChars = 1000
	runwayAPIVersion     = "2024-11-06"
)

var runwayDurations = []int{5, 10}

// Aspect ratios are snapped to the closest resolution pair the model accepts.
var runwayRatios = map[string]string{
	"16:9": "1280:768",
	"9:16": "768:1280",
	"1:1":  "960:960",
	"4:3":  "1104:832",
	"3:4":  "832:1104",
}

type RunwayOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type RunwayAdapter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewRunwayAdapter(opts RunwayOptions) (*RunwayAdapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("runway api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dev.runwayml.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gen3a_turbo"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: runwayDefaultTimeout}
	}
	return &RunwayAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

func (a *RunwayAdapter) Name() string { return runwayProviderName }

func (a *RunwayAdapter) MaxPromptChars() int { return runwayMaxPromptChars }

func (a *RunwayAdapter) Normalize(req Request) Request {
	req.DurationSeconds = snapDuration(req.DurationSeconds, runwayDurations)
	if _, ok := runwayRatios[req.AspectRatio]; !ok {
		req.AspectRatio = "16:9"
	}
	req.ContinuityStrength = clampStrength(req.ContinuityStrength)
	switch req.Quality {
	case "standard", "high":
	default:
		req.Quality = "standard"
	}
	return req
}

type runwaySubmitRequest struct {
	Model       string  `json:"model"`
	PromptText  string  `json:"promptText"`
	PromptImage string  `json:"promptImage,omitempty"`
	Duration    int     `json:"duration"`
	Ratio       string  `json:"ratio"`
	Seed        *int    `json:"seed,omitempty"`
	Watermark   bool    `json:"watermark"`
	Strength    float64 `json:"strength,omitempty"`
}

type runwaySubmitResponse struct {
	ID string `json:"id"`
}

type runwayTask struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Progress    float64  `json:"progress,omitempty"`
	Output      []string `json:"output,omitempty"`
	Duration    int      `json:"duration,omitempty"`
	Failure     string   `json:"failure,omitempty"`
	FailureCode string   `json:"failureCode,omitempty"`
}

func (a *RunwayAdapter) Submit(ctx context.Context, req Request) (string, error) {
	req = a.Normalize(req)
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("runway: prompt is required")
	}

	path := "/v1/text_to_video"
	payload := runwaySubmitRequest{
		Model:      a.model,
		PromptText: req.Prompt,
		Duration:   req.DurationSeconds,
		Ratio:      runwayRatios[req.AspectRatio],
	}
	if req.ReferenceImageURL != "" {
		path = "/v1/image_to_video"
		payload.PromptImage = req.ReferenceImageURL
		payload.Strength = req.ContinuityStrength
	}

	var out runwaySubmitResponse
	if err := a.invoke(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", fmt.Errorf("runway: submit: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("runway: submit returned no task id")
	}
	return out.ID, nil
}

func (a *RunwayAdapter) Poll(ctx context.Context, nativeID string) (Status, error) {
	if strings.TrimSpace(nativeID) == "" {
		return Status{}, errors.New("runway: task id is required")
	}

	var task runwayTask
	if err := a.invoke(ctx, http.MethodGet, "/v1/tasks/"+nativeID, nil, &task); err != nil {
		// A failure to check status is not a job failure. Keep the loop alive.
		a.logger.Warn().Err(err).Str("task_id", nativeID).Msg("runway: poll unreachable, treating as pending")
		return Status{Phase: PhasePending, NativeStatus: "UNREACHABLE"}, nil
	}

	switch task.Status {
	case "SUCCEEDED":
		if len(task.Output) == 0 {
			// Terminal without output yet; surface as still pending rather
			// than fabricating an empty result.
			return Status{Phase: PhasePending, NativeStatus: task.Status}, nil
		}
		return Status{
			Phase:        PhaseReady,
			NativeStatus: task.Status,
			Result:       &Result{URL: task.Output[0], DurationSeconds: task.Duration},
		}, nil
	case "FAILED":
		reason := task.Failure
		if reason == "" {
			reason = task.FailureCode
		}
		if reason == "" {
			reason = "generation failed"
		}
		return Status{Phase: PhaseFailed, NativeStatus: task.Status, Reason: reason}, nil
	case "PENDING", "THROTTLED", "RUNNING":
		return Status{Phase: PhasePending, NativeStatus: task.Status}, nil
	default:
		return Status{Phase: PhasePending, NativeStatus: task.Status}, nil
	}
}

func (a *RunwayAdapter) invoke(ctx context.Context, method, path string, payload, out any) error {
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
	httpReq.Header.Set("X-Runway-Version", runwayAPIVersion)
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

var _ Adapter = (*RunwayAdapter)(nil)
