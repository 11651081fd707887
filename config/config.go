// Package config reads the component configuration (<data dir>/config.json).
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/export"
	"github.com/keboola/db-extractor-common-sub000/sshtunnel"
)

const (
	FileName = "config.json"

	ActionRun            = "run"
	ActionTestConnection = "testConnection"
	ActionGetTables      = "getTables"

	// DefaultLocalPort is the local end of the SSH tunnel when none is configured
	DefaultLocalPort = 33006

	redacted = "*****"
)

var actions = []string{ActionRun, ActionTestConnection, ActionGetTables}

type Config struct {
	Action     string     `mapstructure:"action"`
	Parameters Parameters `mapstructure:"parameters"`
}

type Parameters struct {
	DB DB `mapstructure:"db"`

	// single row configuration
	Row `mapstructure:",squash"`

	// Tables is the legacy multi-table configuration
	Tables []Row `mapstructure:"tables"`
}

type DB struct {
	Driver         string            `mapstructure:"driver"`
	Host           string            `mapstructure:"host"`
	Port           int               `mapstructure:"port"`
	Database       string            `mapstructure:"database"`
	Schema         string            `mapstructure:"schema"`
	User           string            `mapstructure:"user"`
	Password       string            `mapstructure:"#password"`
	Options        map[string]string `mapstructure:"options"`
	InitQueries    []string          `mapstructure:"initQueries"`
	SSH            SSH               `mapstructure:"ssh"`
	ConnectRetries int               `mapstructure:"connectRetries"`
}

type SSH struct {
	Enabled    bool    `mapstructure:"enabled"`
	Host       string  `mapstructure:"sshHost"`
	Port       int     `mapstructure:"sshPort"`
	User       string  `mapstructure:"user"`
	LocalPort  int     `mapstructure:"localPort"`
	RemoteHost string  `mapstructure:"remoteHost"`
	RemotePort int     `mapstructure:"remotePort"`
	Keys       SSHKeys `mapstructure:"keys"`
}

type SSHKeys struct {
	Private string `mapstructure:"#private"`
	Public  string `mapstructure:"public"`
}

type Row struct {
	ID      int    `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Enabled *bool  `mapstructure:"enabled"`

	OutputTable string    `mapstructure:"outputTable"`
	Table       *TableRow `mapstructure:"table"`
	Query       string    `mapstructure:"query"`
	Columns     []string  `mapstructure:"columns"`
	PrimaryKey  []string  `mapstructure:"primaryKey"`

	Incremental               bool   `mapstructure:"incremental"`
	IncrementalFetchingColumn string `mapstructure:"incrementalFetchingColumn"`
	IncrementalFetchingLimit  int    `mapstructure:"incrementalFetchingLimit"`

	Retries *int `mapstructure:"retries"`
}

type TableRow struct {
	Schema    string `mapstructure:"schema"`
	TableName string `mapstructure:"tableName"`
}

func (r *Row) empty() bool {
	return r.OutputTable == "" && r.Table == nil && r.Query == ""
}

// Load reads the configuration file from the data directory. Every failure is a user error.
func Load(dataDir string) (*Config, error) {
	return LoadFile(filepath.Join(dataDir, FileName))
}

func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("action", ActionRun)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewUserError("Configuration file %q not found: %w", path, err)
		}
		return nil, core.NewUserError("Unable to read configuration %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.NewUserError("Invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks what can be checked without connecting to the database.
func (c *Config) Validate() error {
	if !lo.Contains(actions, c.Action) {
		return core.NewValidationError("Action %q is not supported, use one of: %s.", c.Action, strings.Join(actions, ", "))
	}

	db := c.Parameters.DB
	if db.Driver == "" {
		return core.NewValidationError("Database driver is not set.")
	}
	if db.SSH.Enabled && db.SSH.Keys.Private == "" {
		return core.NewValidationError("SSH tunnel is enabled but the private key is not set.")
	}

	if len(c.Parameters.Tables) > 0 && !c.Parameters.Row.empty() {
		return core.NewValidationError("Both tables and a single table export cannot be set together.")
	}

	return nil
}

// ConnectionParams returns the database connection parameters.
func (c *Config) ConnectionParams() *core.ConnectionParams {
	db := c.Parameters.DB
	return &core.ConnectionParams{
		Type:        db.Driver,
		Host:        db.Host,
		Port:        db.Port,
		Database:    db.Database,
		Schema:      db.Schema,
		User:        db.User,
		Password:    db.Password,
		Options:     db.Options,
		InitQueries: db.InitQueries,
	}
}

// ConnectRetryPolicy returns the policy of establishing the database connection and the tunnel.
func (c *Config) ConnectRetryPolicy() *core.RetryPolicy {
	policy := core.DefaultConnectRetryPolicy()
	if c.Parameters.DB.ConnectRetries > 0 {
		policy = policy.WithMaxAttempts(c.Parameters.DB.ConnectRetries)
	}
	return policy
}

// Tunnel returns the SSH tunnel configuration or nil when the tunnel is disabled.
// The remote end defaults to the database host and port.
func (c *Config) Tunnel() *sshtunnel.Config {
	db := c.Parameters.DB
	if !db.SSH.Enabled {
		return nil
	}

	return &sshtunnel.Config{
		Host:       db.SSH.Host,
		Port:       lo.Ternary(db.SSH.Port != 0, db.SSH.Port, sshtunnel.DefaultSSHPort),
		User:       lo.Ternary(db.SSH.User != "", db.SSH.User, db.User),
		PrivateKey: db.SSH.Keys.Private,
		LocalPort:  lo.Ternary(db.SSH.LocalPort != 0, db.SSH.LocalPort, DefaultLocalPort),
		RemoteHost: lo.Ternary(db.SSH.RemoteHost != "", db.SSH.RemoteHost, db.Host),
		RemotePort: lo.Ternary(db.SSH.RemotePort != 0, db.SSH.RemotePort, db.Port),
	}
}

// ExportConfigs converts the configured rows into export requests in the configured order.
func (c *Config) ExportConfigs() ([]*export.ExportConfig, error) {
	if len(c.Parameters.Tables) == 0 {
		if c.Parameters.Row.empty() {
			return nil, core.NewValidationError("Nothing to export, configure a table or a query.")
		}
		return []*export.ExportConfig{c.Parameters.Row.exportConfig()}, nil
	}

	cfgs := make([]*export.ExportConfig, 0, len(c.Parameters.Tables))
	for _, row := range c.Parameters.Tables {
		cfg := row.exportConfig()
		if cfg.IncrementalFetching() {
			return nil, core.NewValidationError("[%s]: Incremental fetching is not supported in the tables list, use a single table configuration.", cfg.OutputTable)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func (r *Row) exportConfig() *export.ExportConfig {
	cfg := &export.ExportConfig{
		ID:                        r.ID,
		Name:                      r.Name,
		Enabled:                   lo.FromPtrOr(r.Enabled, true),
		OutputTable:               r.OutputTable,
		Query:                     r.Query,
		Columns:                   r.Columns,
		PrimaryKey:                r.PrimaryKey,
		Incremental:               r.Incremental,
		IncrementalFetchingColumn: r.IncrementalFetchingColumn,
		IncrementalFetchingLimit:  r.IncrementalFetchingLimit,
		Retries:                   lo.FromPtrOr(r.Retries, export.DefaultRetries),
	}
	if r.Table != nil {
		cfg.Table = &core.TableRef{Schema: r.Table.Schema, Name: r.Table.TableName}
	}
	return cfg
}

// Redacted returns a copy of the configuration without secrets.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Parameters.DB.Options = lo.MapValues(c.Parameters.DB.Options, func(v, k string) string {
		if strings.Contains(strings.ToLower(k), "password") {
			return redacted
		}
		return v
	})
	if cp.Parameters.DB.Password != "" {
		cp.Parameters.DB.Password = redacted
	}
	if cp.Parameters.DB.SSH.Keys.Private != "" {
		cp.Parameters.DB.SSH.Keys.Private = redacted
	}
	return &cp
}

// Dump logs the parsed configuration at debug level.
func (c *Config) Dump(log logrus.FieldLogger) {
	log.Debugf("parsed configuration:\n%s", spew.Sdump(c.Redacted()))
}
