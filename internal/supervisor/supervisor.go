package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"adreel/internal/providers/videogen"
)

// State is the supervisor-side lifecycle of one generation job.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further transitions can leave the state.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateTimedOut
}

// TimedOutReason makes explicit that the ceiling is a local give-up: the
// remote job may still complete and bill on the provider's side.
const TimedOutReason = "polling stopped after reaching the local attempt ceiling; the provider job may still be running"

// Snapshot is a point-in-time view of one supervised job.
type Snapshot struct {
	Handle       string
	State        State
	Attempts     int
	NativeStatus string
	Result       *videogen.Result
	Reason       string
	UpdatedAt    time.Time
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	MaxAttempts  int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 20 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 100
	}
	return c
}

// Supervisor drives one polling loop per job handle. Each loop polls its
// adapter on a fixed interval, strictly sequentially, until the job reaches a
// terminal state or the attempt ceiling. All job state lives inside the loop
// and its snapshot; there is no job table.
type Supervisor struct {
	mu        sync.Mutex
	runs      map[string]*run
	providers *videogen.Registry
	cfg       Config
	logger    zerolog.Logger
}

type run struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	snapshot Snapshot
}

func (r *run) update(mutate func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot.State.Terminal() {
		// Terminal states absorb: late poll responses and re-entries are
		// dropped on the floor.
		return
	}
	mutate(&r.snapshot)
	r.snapshot.UpdatedAt = time.Now()
}

func (r *run) view() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

func New(providers *videogen.Registry, cfg Config, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		runs:      make(map[string]*run),
		providers: providers,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Watch begins supervising the given handle. It is idempotent: a handle with
// an active loop keeps its loop, and a handle that already reached a terminal
// state is never resurrected.
func (s *Supervisor) Watch(handle videogen.JobHandle) Snapshot {
	key := handle.String()

	s.mu.Lock()
	if existing, ok := s.runs[key]; ok {
		s.mu.Unlock()
		return existing.view()
	}

	adapter, ok := s.providers.Get(handle.Provider)
	if !ok {
		s.mu.Unlock()
		return Snapshot{Handle: key, State: StateIdle}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel: cancel,
		snapshot: Snapshot{
			Handle:    key,
			State:     StateSubmitted,
			UpdatedAt: time.Now(),
		},
	}
	s.runs[key] = r
	s.mu.Unlock()

	snap := r.view()
	go s.loop(ctx, handle, adapter, r)
	return snap
}

// Snapshot returns the current view of a supervised handle.
func (s *Supervisor) Snapshot(handle string) (Snapshot, bool) {
	s.mu.Lock()
	r, ok := s.runs[handle]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return r.view(), true
}

// Stop abandons the loop for a handle. This is a plain local stop: the remote
// job is not cancelled and keeps running on the provider's side.
func (s *Supervisor) Stop(handle string) {
	s.mu.Lock()
	r, ok := s.runs[handle]
	if ok {
		delete(s.runs, handle)
	}
	s.mu.Unlock()
	if ok {
		r.cancel()
	}
}

// Shutdown stops every active loop.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	runs := s.runs
	s.runs = make(map[string]*run)
	s.mu.Unlock()
	for _, r := range runs {
		r.cancel()
	}
}

func (s *Supervisor) loop(ctx context.Context, handle videogen.JobHandle, adapter videogen.Adapter, r *run) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer r.cancel()

	r.update(func(snap *Snapshot) { snap.State = StatePolling })

	for attempt := 1; ; attempt++ {
		if attempt > s.cfg.MaxAttempts {
			r.update(func(snap *Snapshot) {
				snap.State = StateTimedOut
				snap.Reason = TimedOutReason
			})
			s.logger.Warn().
				Str("handle", handle.String()).
				Int("attempts", s.cfg.MaxAttempts).
				Msg("supervisor: job timed out locally")
			return
		}

		select {
		case <-ctx.Done():
			// Cooperative stop between iterations: no further polls, no
			// further state writes.
			return
		case <-ticker.C:
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		status, err := adapter.Poll(pollCtx, handle.NativeID)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// A failed status check is not a failed job.
			s.logger.Warn().Err(err).Str("handle", handle.String()).Msg("supervisor: poll error, treating as pending")
			status = videogen.Status{Phase: videogen.PhasePending, NativeStatus: "error"}
		}

		r.update(func(snap *Snapshot) {
			snap.Attempts = attempt
			snap.NativeStatus = status.NativeStatus
			switch status.Phase {
			case videogen.PhaseReady:
				snap.State = StateReady
				snap.Result = status.Result
			case videogen.PhaseFailed:
				snap.State = StateFailed
				snap.Reason = status.Reason
			default:
				snap.State = StatePolling
			}
		})

		if r.view().State.Terminal() {
			s.logger.Info().
				Str("handle", handle.String()).
				Str("state", string(r.view().State)).
				Int("attempts", attempt).
				Msg("supervisor: job reached terminal state")
			return
		}
	}
}
