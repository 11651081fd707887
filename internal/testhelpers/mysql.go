package testhelpers

import (
	"context"

	tc "github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/keboola/db-extractor-common-sub000/adapters"
	"github.com/keboola/db-extractor-common-sub000/core"
)

type MySQLContainer struct {
	*tcmysql.MySQLContainer
	Params *core.ConnectionParams
	Conn   *core.Connection
}

// NewMySQLContainer starts a seeded MySQL container and connects to it.
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
	seedFile, err := GetTestDataFile("mysql_seed.sql")
	if err != nil {
		return nil, err
	}

	ctr, err := tcmysql.Run(
		ctx,
		"mysql:8.4",
		tc.CustomizeRequest(tc.GenericContainerRequest{
			ProviderType: GetContainerProvider(),
		}),
		tcmysql.WithDatabase("dev"),
		tcmysql.WithPassword("password"),
		tcmysql.WithUsername("root"),
		tcmysql.WithScripts(seedFile),
	)
	if err != nil {
		return nil, err
	}

	params, err := endpointParams(ctx, ctr, "3306/tcp")
	if err != nil {
		return nil, err
	}
	params.Type = "mysql"
	params.Database = "dev"
	params.User = "root"
	params.Password = "password"

	conn, err := adapters.NewConnection(ctx, params)
	if err != nil {
		return nil, err
	}

	return &MySQLContainer{
		MySQLContainer: ctr,
		Params:         params,
		Conn:           conn,
	}, nil
}
