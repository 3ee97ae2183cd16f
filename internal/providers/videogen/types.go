package videogen

import (
	"context"
	"fmt"
	"strings"
)

// Request carries the normalized inputs for one clip generation. Values are
// snapped to the enclosing provider's supported set before submission; a
// request never reaches the wire unvalidated.
type Request struct {
	Prompt            string
	ReferenceImageURL string
	DurationSeconds   int
	AspectRatio       string
	Quality           string
	NegativePrompt    string
	Audio             bool
	// ContinuityStrength controls how closely a reference-seeded clip adheres
	// to the seed frame. Clamped to [0, 1].
	ContinuityStrength float64
}

// Phase is the normalized three-way job state every provider-native status
// string maps onto. Unknown native statuses map to PhasePending: a transient
// inability to classify must never report a live job as failed.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// Result is the payload carried by a Ready status.
type Result struct {
	URL             string
	DurationSeconds int
}

// Status is the normalized poll outcome.
type Status struct {
	Phase        Phase
	NativeStatus string
	Result       *Result
	Reason       string
}

// Adapter wraps one back-end's submission and result-retrieval semantics.
// Implementations are stateless and hold no job table.
type Adapter interface {
	Name() string
	// MaxPromptChars is the hard prompt budget the fitter must respect.
	MaxPromptChars() int
	// Normalize snaps request parameters to the provider's supported set.
	Normalize(req Request) Request
	// Submit sends a normalized request and returns the provider-native id.
	Submit(ctx context.Context, req Request) (string, error)
	// Poll reports the current job state. Providers that separate "finished"
	// from "result available" perform the secondary fetch internally so the
	// caller only ever observes a Ready status carrying the media URL.
	Poll(ctx context.Context, nativeID string) (Status, error)
}

const handleSeparator = "::"

// JobHandle identifies a job end-to-end: the provider tag is the dispatch key
// and the native id is whatever the back-end issued at submission.
type JobHandle struct {
	Provider string
	NativeID string
}

func (h JobHandle) String() string {
	return h.Provider + handleSeparator + h.NativeID
}

// ParseJobHandle splits a serialized handle back into its parts.
func ParseJobHandle(s string) (JobHandle, error) {
	idx := strings.Index(s, handleSeparator)
	if idx <= 0 || idx+len(handleSeparator) >= len(s) {
		return JobHandle{}, fmt.Errorf("invalid job handle %q", s)
	}
	return JobHandle{Provider: s[:idx], NativeID: s[idx+len(handleSeparator):]}, nil
}

// Registry holds the closed set of configured adapters keyed by provider tag.
type Registry struct {
	adapters map[string]Adapter
	fallback string
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	if len(r.adapters) == 0 {
		r.fallback = a.Name()
	}
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Default returns the first registered adapter, used when the caller does not
// name a provider.
func (r *Registry) Default() (Adapter, bool) {
	return r.Get(r.fallback)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// snapDuration picks the closest allowed duration, preferring the longer
// option on ties so narration is never cut short.
func snapDuration(seconds int, allowed []int) int {
	if len(allowed) == 0 {
		return seconds
	}
	best := allowed[0]
	for _, candidate := range allowed[1:] {
		db := absInt(seconds - best)
		dc := absInt(seconds - candidate)
		if dc < db || (dc == db && candidate > best) {
			best = candidate
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
