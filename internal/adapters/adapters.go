// Package adapters holds the built-in provider adapters and their
// registration. Each adapter is bespoke glue for one provider family; the
// core only ever sees the fetch.Adapter contract.
package adapters

import (
	"fmt"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/httpclient"
)

// RegisterBuiltins binds every built-in adapter key into the registry. The
// shared HTTP client carries the retry and rate policy all HTTP-backed
// adapters use.
func RegisterBuiltins(registry *fetch.Registry, client *httpclient.Client) error {
	builtins := map[string]fetch.AdapterFactory{
		"jsonfeed": func() (fetch.Adapter, error) {
			return NewJSONFeed(client), nil
		},
		"htmltable": func() (fetch.Adapter, error) {
			return NewHTMLTable(), nil
		},
	}
	for key, factory := range builtins {
		if err := registry.Register(key, factory); err != nil {
			return fmt.Errorf("register builtin %q: %w", key, err)
		}
	}
	return nil
}
