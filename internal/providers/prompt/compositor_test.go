package prompt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"adreel/internal/providers/genai"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func genaiTextResponse(text string) *http.Response {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(string(raw))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func genaiClientForTest(rt roundTripFunc) *genai.Client {
	return genai.NewClient(genai.Options{
		APIKey:     "dummy",
		HTTPClient: &http.Client{Transport: rt},
	})
}

var sampleInput = ComposeInput{
	VisualIdentity: "Kopi Senja, a warm specialty coffee brand with amber tones and handwritten type",
	ShotBreakdown:  "Open on beans pouring, cut to a slow pour-over, close on a smiling barista handing over a cup",
	Script:         "Every morning deserves a slow start. Kopi Senja brews patience into every cup. Taste the sunset in your first sip.",
}

func TestComposeReturnsRawPromptWhenInputsIncomplete(t *testing.T) {
	c := NewComposer(ComposerOptions{Logger: zerolog.Nop()})
	in := sampleInput
	in.Script = "   "
	got := c.Compose(context.Background(), in, "a plain fallback prompt")
	if len(got.Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(got.Parts))
	}
	if got.Parts[0] != "a plain fallback prompt" {
		t.Fatalf("part = %q, want the raw prompt verbatim", got.Parts[0])
	}
	if got.Source != "raw" {
		t.Fatalf("source = %q, want raw", got.Source)
	}
}

func TestComposeSingleLocalFusion(t *testing.T) {
	c := NewComposer(ComposerOptions{Logger: zerolog.Nop()})
	in := sampleInput
	in.DurationSeconds = 10

	got := c.Compose(context.Background(), in, "")
	if got.Split() {
		t.Fatal("10s clip should compose into a single part")
	}
	if got.Source != "local" {
		t.Fatalf("source = %q, want local without a model client", got.Source)
	}
	part := got.Parts[0]
	if len([]rune(part)) > 3000 {
		t.Fatalf("part length = %d, want <= 3000", len([]rune(part)))
	}
	if !strings.Contains(part, in.Script) {
		t.Fatal("the script must appear word for word in the composed prompt")
	}
	for _, marker := range []string{"# ", "- ", "**", "---"} {
		if strings.Contains(part, marker) {
			t.Fatalf("composed prompt contains markup %q", marker)
		}
	}
}

func TestComposeSplitThreshold(t *testing.T) {
	c := NewComposer(ComposerOptions{Logger: zerolog.Nop()})

	in := sampleInput
	in.DurationSeconds = 24
	if got := c.Compose(context.Background(), in, ""); got.Split() {
		t.Fatal("24s is under the threshold, want one part")
	}

	in.DurationSeconds = 25
	if got := c.Compose(context.Background(), in, ""); !got.Split() {
		t.Fatal("25s is at the threshold, want two parts")
	}
}

func TestComposeSplitLocalFusionSharesAnchor(t *testing.T) {
	c := NewComposer(ComposerOptions{Logger: zerolog.Nop()})
	in := sampleInput
	in.DurationSeconds = 30

	got := c.Compose(context.Background(), in, "")
	if !got.Split() {
		t.Fatalf("parts = %d, want 2", len(got.Parts))
	}
	if got.ContinuityAnchor == "" {
		t.Fatal("split composition must carry a continuity anchor")
	}
	if !strings.Contains(got.Parts[0], got.ContinuityAnchor) {
		t.Fatal("part one must end on the anchor frame")
	}
	if !strings.Contains(got.Parts[1], got.ContinuityAnchor) {
		t.Fatal("part two must open on the anchor frame")
	}
	for i, part := range got.Parts {
		if len([]rune(part)) > 3000 {
			t.Fatalf("part %d length = %d, want <= 3000", i+1, len([]rune(part)))
		}
	}
	combined := got.Parts[0] + " " + got.Parts[1]
	for _, word := range strings.Fields(in.Script) {
		if !strings.Contains(combined, word) {
			t.Fatalf("script word %q missing from the combined parts", word)
		}
	}
}

func TestComposeSingleStripsModelMarkup(t *testing.T) {
	client := genaiClientForTest(func(r *http.Request) (*http.Response, error) {
		return genaiTextResponse("# Scene\n**Amber light** floods the cafe.\n- Beans pour in slow motion.\n---\nThe barista smiles."), nil
	})
	c := NewComposer(ComposerOptions{Client: client, Logger: zerolog.Nop()})
	in := sampleInput
	in.DurationSeconds = 10

	got := c.Compose(context.Background(), in, "")
	if got.Source != "gemini" {
		t.Fatalf("source = %q, want gemini", got.Source)
	}
	part := got.Parts[0]
	for _, marker := range []string{"#", "**", "- ", "---"} {
		if strings.Contains(part, marker) {
			t.Fatalf("composed prompt contains markup %q: %q", marker, part)
		}
	}
	if !strings.Contains(part, "Amber light floods the cafe.") {
		t.Fatalf("flattened prose missing, got %q", part)
	}
}

func TestComposeSplitModelPayload(t *testing.T) {
	payload := `{"part_1":"Amber cafe interior, beans pouring in slow motion.","part_2":"A barista hands over the finished cup with a smile.","boundary_frame":"The cup centered on the counter under warm light."}`
	client := genaiClientForTest(func(r *http.Request) (*http.Response, error) {
		return genaiTextResponse("```json\n" + payload + "\n```"), nil
	})
	c := NewComposer(ComposerOptions{Client: client, Logger: zerolog.Nop()})
	in := sampleInput
	in.DurationSeconds = 40

	got := c.Compose(context.Background(), in, "")
	if !got.Split() {
		t.Fatalf("parts = %d, want 2", len(got.Parts))
	}
	anchor := "The cup centered on the counter under warm light."
	if got.ContinuityAnchor != anchor {
		t.Fatalf("anchor = %q", got.ContinuityAnchor)
	}
	// The model ignored the instruction to repeat the boundary frame, so the
	// composer has to weld it in itself.
	if !strings.HasSuffix(got.Parts[0], anchor) {
		t.Fatalf("part one = %q, want anchor suffix", got.Parts[0])
	}
	if !strings.Contains(got.Parts[1], anchor) {
		t.Fatalf("part two = %q, want anchor present", got.Parts[1])
	}
}

func TestComposeSplitModelFailureFallsBackLocal(t *testing.T) {
	client := genaiClientForTest(func(r *http.Request) (*http.Response, error) {
		return genaiTextResponse("not json at all"), nil
	})
	c := NewComposer(ComposerOptions{Client: client, Logger: zerolog.Nop()})
	in := sampleInput
	in.DurationSeconds = 30

	got := c.Compose(context.Background(), in, "")
	if !got.Split() {
		t.Fatalf("parts = %d, want 2 from the local fallback", len(got.Parts))
	}
	if got.Source != "local" {
		t.Fatalf("source = %q, want local", got.Source)
	}
}
