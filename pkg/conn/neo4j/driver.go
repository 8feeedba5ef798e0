// Package neo4j runs remote procedures over Bolt with the Neo4j driver.
package neo4j

import (
	"context"
	"errors"
	"fmt"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// Executor sends a query and collects all of its records.
//
// This is extracted from neo4j.ExecuteQuery bound to a driver and a database.
// Tests replace it with a fake.
type Executor interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4jdrv.EagerResult, error)
}

// Config of a Bolt connection.
type Config struct {
	// URI like "neo4j://localhost:7687" or "bolt+s://example.com:7687"
	URI string

	Username string
	Password string

	// Database to run queries on. Empty means the server default.
	Database string

	// MaxConnectionPoolSize. 0 leaves the driver default.
	MaxConnectionPoolSize int
}

// Driver is a Bolt connection pool bound to a database.
type Driver struct {
	driver   neo4jdrv.DriverWithContext
	database string
}

var _ Executor = &Driver{}

// Open creates a driver and verifies connectivity.
func Open(ctx context.Context, conf Config) (*Driver, error) {
	if conf.URI == "" {
		return nil, errors.New("neo4j: uri is empty")
	}
	drv, err := neo4jdrv.NewDriverWithContext(
		conf.URI,
		neo4jdrv.BasicAuth(conf.Username, conf.Password, ""),
		func(c *config.Config) {
			if 0 < conf.MaxConnectionPoolSize {
				c.MaxConnectionPoolSize = conf.MaxConnectionPoolSize
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: cannot create driver for %s: %w", conf.URI, err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		drv.Close(ctx)
		return nil, fmt.Errorf("neo4j: cannot connect to %s: %w", conf.URI, err)
	}
	return &Driver{driver: drv, database: conf.Database}, nil
}

func (d *Driver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (*neo4jdrv.EagerResult, error) {
	opts := []neo4jdrv.ExecuteQueryConfigurationOption{}
	if d.database != "" {
		opts = append(opts, neo4jdrv.ExecuteQueryWithDatabase(d.database))
	}
	return neo4jdrv.ExecuteQuery(ctx, d.driver, query, params, neo4jdrv.EagerResultTransformer, opts...)
}

// Database returns the database name queries run on.
func (d *Driver) Database() string {
	return d.database
}

func (d *Driver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
