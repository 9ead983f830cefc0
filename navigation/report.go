package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/reflinks/dom"
	"github.com/hazyhaar/reflinks/permanent"
	"github.com/hazyhaar/reflinks/request"
)

// Outcome classifies how a visit ended.
type Outcome string

const (
	OutcomeRendered      Outcome = "rendered"
	OutcomeCanceled      Outcome = "canceled"
	OutcomeTransport     Outcome = "transport_error"
	OutcomeMissingRoot   Outcome = "missing_root"
	OutcomeConfiguration Outcome = "configuration_error"
	OutcomeObserver      Outcome = "observer_error"
	OutcomeError         Outcome = "error"
)

// OutcomeOf maps a Visit error to its outcome.
func OutcomeOf(err error) Outcome {
	var (
		reqErr  *request.Error
		rootErr *MissingRootError
		cfgErr  *permanent.ConfigurationError
		obsErr  *ObserverError
	)
	switch {
	case err == nil:
		return OutcomeRendered
	case errors.Is(err, ErrVisitCanceled):
		return OutcomeCanceled
	case errors.As(err, &obsErr):
		return OutcomeObserver
	case errors.As(err, &reqErr):
		return OutcomeTransport
	case errors.As(err, &rootErr):
		return OutcomeMissingRoot
	case errors.As(err, &cfgErr), errors.Is(err, dom.ErrUnsupportedSelector):
		return OutcomeConfiguration
	default:
		return OutcomeError
	}
}

// Report describes one finished visit.
type Report struct {
	VisitID    string
	Path       string
	Action     string
	Outcome    Outcome
	StatusCode int // 0 when no response was received
	Err        error
	Duration   time.Duration
	At         time.Time
	Permanent  int // cached permanent elements after the visit
}

// Reporter is notified once per visit, after the outcome is known.
// Implementations must not block: they run on the visit's goroutine.
type Reporter interface {
	ReportVisit(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report)

func (f ReporterFunc) ReportVisit(ctx context.Context, r Report) { f(ctx, r) }
