package cli

import (
	"context"

	"github.com/keboola/db-extractor-common-sub000/adapters"
	"github.com/keboola/db-extractor-common-sub000/core"
	"github.com/keboola/db-extractor-common-sub000/sshtunnel"
)

// session is an open database connection, possibly going through an SSH tunnel.
type session struct {
	tunnel *sshtunnel.Tunnel
	conn   *core.Connection
	exec   *core.Executor
}

func (a *app) connect(ctx context.Context) (*session, error) {
	log := a.log.Run()
	params := a.cfg.ConnectionParams()
	policy := a.cfg.ConnectRetryPolicy()

	s := &session{}

	if tunnelCfg := a.cfg.Tunnel(); tunnelCfg != nil {
		tunnel, err := sshtunnel.Open(ctx, tunnelCfg, sshtunnel.WithRetryPolicy(policy), sshtunnel.WithLogger(log))
		if err != nil {
			return nil, err
		}
		s.tunnel = tunnel
		params = params.WithEndpoint(tunnel.Endpoint())
	}

	log.Infof("Connecting to %q database", params.Type)
	conn, err := adapters.NewConnection(ctx, params,
		core.WithConnectRetryPolicy(policy),
		core.WithConnectionLogger(log))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.conn = conn
	s.exec = core.NewExecutor(conn, core.WithExecutorLogger(log))
	return s, nil
}

func (s *session) metadata() core.MetadataProvider {
	return s.conn.Adapter().MetadataProvider(s.exec, s.conn.Params())
}

func (s *session) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.tunnel != nil {
		_ = s.tunnel.Close()
	}
}
