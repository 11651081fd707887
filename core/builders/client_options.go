package builders

import (
	"strconv"
	"strings"
)

type clientConfig struct {
	typeProcessors map[string]func(any) any
	classify       func(error) error
}

type ClientOption func(*clientConfig)

func WithCustomTypeProcessor(typ string, fn func(any) any) ClientOption {
	return func(cc *clientConfig) {
		t := strings.ToLower(typ)
		_, ok := cc.typeProcessors[t]
		if ok {
			// processor already registered for this type
			return
		}

		cc.typeProcessors[t] = fn
	}
}

// WithErrorClassifier sets the function turning driver errors into *core.DBError.
func WithErrorClassifier(fn func(error) error) ClientOption {
	return func(cc *clientConfig) {
		cc.classify = fn
	}
}

func formatLength(n int64) string {
	return strconv.FormatInt(n, 10)
}
