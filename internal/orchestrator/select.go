package orchestrator

import (
	"fmt"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Selector narrows the configured source list for one invocation. Zero value
// means "all active sources".
type Selector struct {
	// Source names exactly one source. An explicit request overrides the
	// source's active flag.
	Source string

	// Adapter selects every active source bound to the adapter key.
	Adapter string
}

// SelectSources applies the selector with fixed precedence: named source,
// then named adapter, then all active. Selection that yields nothing is fatal
// to the whole invocation since there is nothing useful to report.
func SelectSources(sources []fetch.SourceConfig, sel Selector) ([]fetch.SourceConfig, error) {
	var out []fetch.SourceConfig
	switch {
	case sel.Source != "":
		for _, s := range sources {
			if s.Name == sel.Source {
				out = append(out, s)
			}
		}
	case sel.Adapter != "":
		for _, s := range sources {
			if s.Active && s.Adapter == sel.Adapter {
				out = append(out, s)
			}
		}
	default:
		for _, s := range sources {
			if s.Active {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: source=%q adapter=%q", fetch.ErrNoSourcesFound, sel.Source, sel.Adapter)
	}
	return out, nil
}
