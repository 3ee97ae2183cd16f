package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"adreel/internal/infra"
	"adreel/internal/sqlinline"
)

// Event is one telemetry record for a submission or failure.
type Event struct {
	UserID       string
	Feature      string
	Provider     string
	Success      bool
	ErrorMessage string
	Metadata     map[string]any
}

// Recorder writes usage events fire-and-forget: a telemetry failure is logged
// and dropped, never propagated into the generation flow.
type Recorder struct {
	sql     infra.SQLExecutor
	logger  zerolog.Logger
	timeout time.Duration
}

func NewRecorder(sql infra.SQLExecutor, logger zerolog.Logger) *Recorder {
	return &Recorder{sql: sql, logger: logger, timeout: 5 * time.Second}
}

// Record persists the event on a detached context so the caller's request
// lifecycle cannot cancel or be blocked by it.
func (r *Recorder) Record(event Event) {
	if r == nil || r.sql == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		props, err := json.Marshal(event.Metadata)
		if err != nil {
			props = []byte("{}")
		}
		_, err = r.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
			event.UserID, event.Feature, event.Provider, event.Success, event.ErrorMessage, props)
		if err != nil {
			r.logger.Warn().Err(err).Str("feature", event.Feature).Msg("usage: event insert failed")
		}
	}()
}
