package navigation

import (
	"errors"
	"fmt"
)

// ErrVisitCanceled is returned when a before-visit observer vetoes the visit.
// No request has been sent and nothing was mutated.
var ErrVisitCanceled = errors.New("navigation: visit canceled")

// MissingRootError is returned when the root selector matches nothing.
// Live is true when the live document lacks the root, false when the fetched
// page does. Either way the live tree has not been swapped.
type MissingRootError struct {
	Selector string
	Live     bool
}

func (e *MissingRootError) Error() string {
	where := "the response"
	if e.Live {
		where = "the current document"
	}
	return fmt.Sprintf("navigation: could not find root element in %s. Root selector: %s", where, e.Selector)
}

// ObserverError wraps an error returned by a lifecycle observer with the
// event it was raised from.
type ObserverError struct {
	Event string
	Err   error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("navigation: %s observer: %v", e.Event, e.Err)
}

func (e *ObserverError) Unwrap() error { return e.Err }
