package sync

import (
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// failureAction tells the orchestrator how to react to a classified error
// from a stream's sync.
type failureAction int

const (
	// actionSkipStream abandons the failing stream and moves on to the
	// next one. The run still finishes with an error so the operator sees
	// the partial result.
	actionSkipStream failureAction = iota

	// actionAbort stops the whole run immediately. Used for errors that
	// would fail every remaining stream the same way.
	actionAbort
)

// failurePolicy maps an error to the orchestrator's reaction. Bad report
// definitions and throttling are stream-local or transient-by-tomorrow, so
// the rest of the catalog still gets its chance. Authentication failures and
// anything unclassified abort: retrying them against other streams only
// burns quota.
func failurePolicy(err error) failureAction {
	switch taperrors.TypeOf(err) {
	case taperrors.ErrorTypeInvalidArgument,
		taperrors.ErrorTypeRateLimit,
		taperrors.ErrorTypeQuotaExceeded:
		return actionSkipStream
	default:
		return actionAbort
	}
}
