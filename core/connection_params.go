package core

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
)

type ConnectionParams struct {
	// Type selects the backend adapter (e.g. "postgres", "mysql")
	Type     string
	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string
	// Options are extra backend specific DSN parameters
	Options map[string]string
	// InitQueries are executed verbatim on every fresh connection
	InitQueries []string
}

// Expand returns a copy of the original parameters with expanded fields.
// A field that fails to expand is kept as is and a warning is logged.
func (p *ConnectionParams) Expand() *ConnectionParams {
	return p.ExpandWithLogger(logrus.StandardLogger())
}

func (p *ConnectionParams) ExpandWithLogger(log logrus.FieldLogger) *ConnectionParams {
	field := func(name, value string) string {
		ex, err := expand(value)
		if err != nil {
			log.Warnf("Unable to expand connection parameter %q: %s", name, err)
			return value
		}
		return ex
	}

	options := make(map[string]string, len(p.Options))
	for k, v := range p.Options {
		options[k] = field("options."+k, v)
	}

	return &ConnectionParams{
		Type:        field("type", p.Type),
		Host:        field("host", p.Host),
		Port:        p.Port,
		Database:    field("database", p.Database),
		Schema:      field("schema", p.Schema),
		User:        field("user", p.User),
		Password:    field("password", p.Password),
		Options:     options,
		InitQueries: slices.Clone(p.InitQueries),
	}
}

// WithEndpoint returns a copy of the parameters pointing to a different host and port
// (used when connecting through a tunnel).
func (p *ConnectionParams) WithEndpoint(host string, port int) *ConnectionParams {
	c := *p
	c.Options = maps.Clone(p.Options)
	c.InitQueries = slices.Clone(p.InitQueries)
	c.Host = host
	c.Port = port
	return &c
}

// MarshalJSON never exposes the password.
func (p *ConnectionParams) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Database string `json:"database"`
		Schema   string `json:"schema,omitempty"`
		User     string `json:"user"`
	}{
		Type:     p.Type,
		Host:     p.Host,
		Port:     p.Port,
		Database: p.Database,
		Schema:   p.Schema,
		User:     p.User,
	})
}
