package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestCompleteReturnsFirstCandidateText(t *testing.T) {
	var captured generateContentRequest
	client := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("x-goog-api-key") != "dummy" {
				t.Fatalf("api key header = %q", r.Header.Get("x-goog-api-key"))
			}
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return response(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "},{"text":"hello"}]}}]}`), nil
		})},
	})

	got, err := client.Complete(context.Background(), "say hello", 0.4)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("Complete = %q, want %q", got, "hello")
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.Temperature != 0.4 {
		t.Fatalf("generationConfig = %+v", captured.GenerationConfig)
	}
}

func TestCompleteJSONConstrainsMimeType(t *testing.T) {
	var captured generateContentRequest
	client := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			return response(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`), nil
		})},
	})

	if _, err := client.CompleteJSON(context.Background(), "respond with json", 0.2); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if captured.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("responseMimeType = %q", captured.GenerationConfig.ResponseMimeType)
	}
}

func TestCompleteWithoutAPIKey(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Complete(context.Background(), "x", 0); err != ErrNoAPIKey {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	client := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return response(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`), nil
		})},
	})
	_, err := client.Complete(context.Background(), "x", 0)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want the upstream message", err)
	}
}

func TestCompleteEmptyCandidates(t *testing.T) {
	client := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return response(http.StatusOK, `{"candidates":[]}`), nil
		})},
	})
	if _, err := client.Complete(context.Background(), "x", 0); err == nil {
		t.Fatal("empty candidate set should surface an error")
	}
}
