package fetch

import (
	"errors"
	"fmt"
)

// Sentinel errors for run-level failure conditions.
var (
	// ErrAdapterNameInvalid means a source names an adapter key that is not
	// registered.
	ErrAdapterNameInvalid = errors.New("adapter name invalid")

	// ErrAdapterModuleInvalid means a registered adapter implements neither
	// fetch capability.
	ErrAdapterModuleInvalid = errors.New("adapter module invalid")

	// ErrNoSourcesFound means selection produced zero sources; the whole
	// invocation is fatal since there is nothing to run or report.
	ErrNoSourcesFound = errors.New("no sources found for the given criteria")
)

// AdapterResolveError wraps a failure raised while constructing an adapter.
type AdapterResolveError struct {
	Key string
	Err error
}

func (e *AdapterResolveError) Error() string {
	return fmt.Sprintf("resolve adapter %q: %v", e.Key, e.Err)
}

func (e *AdapterResolveError) Unwrap() error { return e.Err }

// AdapterError wraps a fetch-time failure from a provider: network errors,
// non-200 responses, or payloads the adapter could not parse. Always isolated
// to its source.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter failure for %q: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ValidationError reports a record that failed canonical-shape validation.
// It carries the offending record and every violation found, and is captured
// per-source, never fatal to the batch.
type ValidationError struct {
	Measurement Measurement
	Violations  []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "measurement validation failed"
	}
	return "measurement validation failed: " + e.Violations[0]
}

// CauseKey returns the stable string used to tally an error in a source's
// failure map. Validation errors group by their first violation so one
// systemic schema problem shows up as one cause with a count.
func CauseKey(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Violations) > 0 {
		return verr.Violations[0]
	}
	var aerr *AdapterError
	if errors.As(err, &aerr) {
		return aerr.Err.Error()
	}
	return err.Error()
}
