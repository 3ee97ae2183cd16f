package videogen

import (
	"testing"
)

func TestJobHandleRoundTrip(t *testing.T) {
	h := JobHandle{Provider: "runway", NativeID: "abc-123"}
	parsed, err := ParseJobHandle(h.String())
	if err != nil {
		t.Fatalf("ParseJobHandle returned error: %v", err)
	}
	if parsed != h {
		t.Fatalf("parsed = %+v, want %+v", parsed, h)
	}
}

func TestParseJobHandleRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"", "runway", "::abc", "runway::", "abc-123"} {
		if _, err := ParseJobHandle(in); err == nil {
			t.Fatalf("ParseJobHandle(%q) should fail", in)
		}
	}
}

func TestParseJobHandleKeepsSeparatorInNativeID(t *testing.T) {
	parsed, err := ParseJobHandle("minimax::task::v2")
	if err != nil {
		t.Fatalf("ParseJobHandle returned error: %v", err)
	}
	if parsed.Provider != "minimax" || parsed.NativeID != "task::v2" {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestSnapDuration(t *testing.T) {
	cases := []struct {
		in      int
		allowed []int
		want    int
	}{
		{3, []int{5, 10}, 5},
		{7, []int{5, 10}, 5},
		{8, []int{5, 10}, 10},
		{8, []int{6, 10}, 10}, // tie prefers the longer cut
		{30, []int{5, 10}, 10},
		{7, nil, 7},
	}
	for _, tc := range cases {
		if got := snapDuration(tc.in, tc.allowed); got != tc.want {
			t.Fatalf("snapDuration(%d, %v) = %d, want %d", tc.in, tc.allowed, got, tc.want)
		}
	}
}

func TestRegistryDefaultIsFirstRegistered(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Default(); ok {
		t.Fatal("empty registry should have no default")
	}
	runway, err := NewRunwayAdapter(RunwayOptions{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewRunwayAdapter returned error: %v", err)
	}
	minimax, err := NewMiniMaxAdapter(MiniMaxOptions{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewMiniMaxAdapter returned error: %v", err)
	}
	r.Register(runway)
	r.Register(minimax)

	def, ok := r.Default()
	if !ok {
		t.Fatal("registry with adapters should have a default")
	}
	if def.Name() != runwayProviderName {
		t.Fatalf("default = %q, want first registered %q", def.Name(), runwayProviderName)
	}
	if len(r.Names()) != 2 {
		t.Fatalf("names = %v, want two entries", r.Names())
	}
}
