package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/keboola/db-extractor-common-sub000/core"
)

var (
	errNoValidTypeAliases   = errors.New("no valid type aliases provided")
	ErrUnsupportedTypeAlias = errors.New("no driver registered for provided type alias")
)

// registeredAdapters holds implemented adapters - specific adapters register themselves in their init functions.
// The main reason is to be able to compile the binary without unsupported os/arch of specific drivers.
var registeredAdapters = make(map[string]core.Adapter)

// register registers a new adapter for specific database
func register(adapter core.Adapter, aliases ...string) error {
	if len(aliases) < 1 {
		return errNoValidTypeAliases
	}

	invalidCount := 0
	for _, alias := range aliases {
		if alias == "" {
			invalidCount++
			continue
		}
		registeredAdapters[alias] = adapter
	}

	if invalidCount == len(aliases) {
		return errNoValidTypeAliases
	}

	return nil
}

// Mux is an interface to all internal adapters.
type Mux struct{}

// GetAdapter returns the adapter registered for the driver type. An unknown type is a fatal
// connection error: it can never be fixed by retrying.
func (*Mux) GetAdapter(typ string) (core.Adapter, error) {
	value, ok := registeredAdapters[typ]
	if !ok {
		return nil, &core.ConnectionError{
			Fatal: true,
			Err:   fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedTypeAlias, typ, Types()),
		}
	}

	return value, nil
}

func (*Mux) AddAdapter(typ string, adapter core.Adapter) error {
	return register(adapter, typ)
}

// Types returns all registered type aliases, sorted.
func Types() []string {
	types := make([]string, 0, len(registeredAdapters))
	for typ := range registeredAdapters {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// NewConnection is a wrapper around core.NewConnection that uses the internal mux for
// adapter registration.
func NewConnection(ctx context.Context, params *core.ConnectionParams, opts ...core.ConnectionOption) (*core.Connection, error) {
	adapter, err := new(Mux).GetAdapter(params.Type)
	if err != nil {
		return nil, core.NewApplicationError("Cannot connect to %q database: %w", params.Type, err)
	}

	return core.NewConnection(ctx, params, adapter, opts...)
}
