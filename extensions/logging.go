package extensions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	searchfn "github.com/searchfn/searchfn-go"
)

// LoggingExtension logs fetch lifecycle events
type LoggingExtension struct {
	searchfn.BaseExtension
	log zerolog.Logger
}

// NewLoggingExtension creates a logging extension writing through log
func NewLoggingExtension(log zerolog.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: searchfn.NewBaseExtension("logging"),
		log:           log,
	}
}

func (e *LoggingExtension) OnFetchStart(op *searchfn.Operation) error {
	e.log.Debug().
		Str("coordinator", op.Coordinator.Name()).
		Str("request", op.Request.ID()).
		Msg("fetch started")
	return nil
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *searchfn.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	if err != nil {
		e.log.Debug().
			Str("coordinator", op.Coordinator.Name()).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("call returned error")
	}
	return result, err
}

func (e *LoggingExtension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	var evt *zerolog.Event
	if s.Outcome == searchfn.OutcomeFailed {
		evt = e.log.Warn().Err(s.Err)
	} else {
		evt = e.log.Info()
	}
	evt.
		Str("coordinator", s.Coordinator).
		Str("request", s.Request.ID()).
		Str("outcome", s.Outcome.String()).
		Dur("duration", s.Duration).
		Msg("fetch settled")
}

func (e *LoggingExtension) OnDiscard(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.log.Debug().
		Str("coordinator", s.Coordinator).
		Str("request", s.Request.ID()).
		Str("outcome", s.Outcome.String()).
		Dur("duration", s.Duration).
		Msg("stale result dropped")
}

func (e *LoggingExtension) OnStoreUpdate(op *searchfn.Operation) {
	e.log.Debug().
		Str("coordinator", op.Coordinator.Name()).
		Str("kind", string(op.Kind)).
		Msg("store updated")
}

func (e *LoggingExtension) OnCleanupError(err *searchfn.CleanupError) bool {
	e.log.Error().
		Err(err.Err).
		Str("context", err.Context).
		Msg("cleanup failed")
	return true
}
