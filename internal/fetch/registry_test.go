package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type batchAdapter struct{ name string }

func (a *batchAdapter) Name() string { return a.name }

func (a *batchAdapter) FetchBatch(context.Context, SourceConfig) ([]Measurement, error) {
	return nil, nil
}

type streamAdapter struct{ name string }

func (a *streamAdapter) Name() string { return a.name }

func (a *streamAdapter) FetchStream(context.Context, SourceConfig) (<-chan Result, error) {
	ch := make(chan Result)
	close(ch)
	return ch, nil
}

// bareAdapter satisfies Adapter but neither fetch capability.
type bareAdapter struct{}

func (bareAdapter) Name() string { return "bare" }

func TestRegistryResolveMemoizes(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	calls := 0
	require.NoError(t, r.Register("feed", func() (Adapter, error) {
		calls++
		return &batchAdapter{name: "feed"}, nil
	}))

	first, err := r.Resolve("feed")
	require.NoError(t, err)
	second, err := r.Resolve("feed")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, calls)
}

func TestRegistryResolveUnknownKey(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Resolve("nope")
	require.ErrorIs(t, err, ErrAdapterNameInvalid)
}

func TestRegistryResolveFactoryFailure(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	boom := errors.New("credentials missing")
	require.NoError(t, r.Register("broken", func() (Adapter, error) {
		return nil, boom
	}))

	_, err := r.Resolve("broken")
	var rerr *AdapterResolveError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "broken", rerr.Key)
	require.ErrorIs(t, err, boom)
}

func TestRegistryResolveNoCapability(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register("bare", func() (Adapter, error) {
		return bareAdapter{}, nil
	}))

	_, err := r.Resolve("bare")
	require.ErrorIs(t, err, ErrAdapterModuleInvalid)
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	factory := func() (Adapter, error) { return &streamAdapter{name: "s"}, nil }
	require.NoError(t, r.Register("s", factory))
	require.Error(t, r.Register("s", factory))
}

func TestRegistryKeysSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	factory := func() (Adapter, error) { return &batchAdapter{}, nil }
	require.NoError(t, r.Register("zeta", factory))
	require.NoError(t, r.Register("alpha", factory))
	require.NoError(t, r.Register("mid", factory))
	require.Equal(t, []string{"alpha", "mid", "zeta"}, r.Keys())
}

func TestCauseKeyGrouping(t *testing.T) {
	t.Parallel()

	verr := &ValidationError{Violations: []string{`requires property "unit"`, `requires property "city"`}}
	require.Equal(t, `requires property "unit"`, CauseKey(verr))

	aerr := &AdapterError{Source: "acme", Err: errors.New("status 503")}
	require.Equal(t, "status 503", CauseKey(aerr))

	plain := errors.New("something else")
	require.Equal(t, "something else", CauseKey(plain))
}
