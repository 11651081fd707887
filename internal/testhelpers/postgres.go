package testhelpers

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	tcpsql "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/keboola/db-extractor-common-sub000/adapters"
	"github.com/keboola/db-extractor-common-sub000/core"
)

type PostgresContainer struct {
	*tcpsql.PostgresContainer
	Params *core.ConnectionParams
	Conn   *core.Connection
}

// NewPostgresContainer starts a seeded postgres container and connects to it.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	seedFile, err := GetTestDataFile("postgres_seed.sql")
	if err != nil {
		return nil, err
	}

	ctr, err := tcpsql.Run(
		ctx,
		"postgres:16-alpine",
		tcpsql.BasicWaitStrategies(),
		tc.CustomizeRequest(tc.GenericContainerRequest{
			ProviderType: GetContainerProvider(),
		}),
		tcpsql.WithInitScripts(seedFile),
		tcpsql.WithDatabase("dev"),
		tcpsql.WithUsername("postgres"),
		tcpsql.WithPassword("postgres"),
	)
	if err != nil {
		return nil, err
	}

	params, err := endpointParams(ctx, ctr, "5432/tcp")
	if err != nil {
		return nil, err
	}
	params.Type = "postgres"
	params.Database = "dev"
	params.User = "postgres"
	params.Password = "postgres"

	conn, err := adapters.NewConnection(ctx, params)
	if err != nil {
		return nil, err
	}

	return &PostgresContainer{
		PostgresContainer: ctr,
		Params:            params,
		Conn:              conn,
	}, nil
}

// endpointParams returns connection parameters pointing to the mapped port of the container.
func endpointParams(ctx context.Context, ctr tc.Container, port string) (*core.ConnectionParams, error) {
	host, err := ctr.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("ctr.Host: %w", err)
	}

	mapped, err := ctr.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, fmt.Errorf("ctr.MappedPort: %w", err)
	}

	return &core.ConnectionParams{
		Host: host,
		Port: mapped.Int(),
	}, nil
}
