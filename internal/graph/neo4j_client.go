package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/config"
	"github.com/rohankatakam/codelineage/internal/errors"
)

// Client wraps the Neo4j driver with the database queries run against
type Client struct {
	driver   neo4j.DriverWithContext
	logger   *logrus.Logger
	database string
}

// NewClient connects to Neo4j and verifies connectivity
func NewClient(ctx context.Context, cfg config.GraphConfig, logger *logrus.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri missing")
	}
	if logger == nil {
		logger = logrus.New()
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = 50
			c.ConnectionAcquisitionTimeout = 60 * time.Second
			c.MaxConnectionLifetime = time.Hour
			c.SocketConnectTimeout = 5 * time.Second
			c.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	// Fail fast on startup
	verifyCtx, cancel := withOperationTimeout(ctx, "health_check")
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, errors.ExternalErrorf(err, "failed to connect to neo4j at %s", cfg.URI)
	}

	logger.WithFields(logrus.Fields{
		"uri":      cfg.URI,
		"user":     cfg.User,
		"database": database,
	}).Debug("neo4j client connected")

	return &Client{
		driver:   driver,
		logger:   logger,
		database: database,
	}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return nil
}

// HealthCheck verifies Neo4j connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := withOperationTimeout(ctx, "health_check")
	defer cancel()
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// History walks first-parent links from location back to the tree's root.
// Locations are returned newest first.
func (c *Client) History(ctx context.Context, runID, location string) ([]string, error) {
	ctx, cancel := withOperationTimeout(ctx, "history_query")
	defer cancel()

	query := `
		MATCH p = (v:EntityVersion {run_id: $run_id, location: $location})-[:PARENT*0.. {slot: 0}]->(a:EntityVersion)
		WHERE NOT (a)-[:PARENT {slot: 0}]->()
		RETURN [n IN nodes(p) | n.location] AS locations
		ORDER BY length(p) DESC
		LIMIT 1
	`
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query,
		map[string]any{"run_id": runID, "location": location},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	raw, _ := result.Records[0].Get("locations")
	list, _ := raw.([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Client) write(ctx context.Context, query string, params map[string]any) (int64, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	if n, ok := result.Records[0].Get("written"); ok {
		if count, ok := n.(int64); ok {
			return count, nil
		}
	}
	return 0, nil
}

func withOperationTimeout(ctx context.Context, operation string) (context.Context, context.CancelFunc) {
	if tc := GetConfigForOperation(operation); tc.Timeout > 0 {
		return context.WithTimeout(ctx, tc.Timeout)
	}
	return context.WithCancel(ctx)
}
