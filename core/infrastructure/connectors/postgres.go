package connectors

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
)

// PostgresAdapter opens one pgx connection per call
type PostgresAdapter struct {
	log logging.Logger
}

// NewPostgresAdapter creates the PostgreSQL engine adapter
func NewPostgresAdapter() *PostgresAdapter {
	return &PostgresAdapter{log: logging.New("connector:postgres")}
}

func (a *PostgresAdapter) Name() string {
	return "postgres"
}

func (a *PostgresAdapter) Prepare(queryText string) (interfaces.Statement, error) {
	return prepareSQL(domain.EnginePostgreSQL, queryText)
}

// Connect dials a single connection. No pool is created.
func (a *PostgresAdapter) Connect(ctx context.Context, d domain.DataSourceDescriptor) (interfaces.Connection, error) {
	config, err := BuildPostgresParams(d)
	if err != nil {
		return nil, err
	}

	a.log.Debugf("Opening PostgreSQL connection to %s", d.Target())
	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, connectionFailed(domain.EnginePostgreSQL, "failed to connect to postgres", err)
	}
	return &postgresConnection{conn: conn, log: a.log}, nil
}

type postgresConnection struct {
	conn *pgx.Conn
	log  logging.Logger
}

func (c *postgresConnection) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return connectionFailed(domain.EnginePostgreSQL, "failed to ping postgres database", err)
	}
	return nil
}

// Query sends the statement over the simple protocol so no placeholders are
// interpreted and no prepared statement is created.
func (c *postgresConnection) Query(ctx context.Context, stmt interfaces.Statement) ([]map[string]any, error) {
	rows, err := c.conn.Query(ctx, stmt.String(), pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, queryFailed(domain.EnginePostgreSQL, "failed to execute query", err)
	}
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescriptions))
	for i, fd := range fieldDescriptions {
		columns[i] = fd.Name
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, queryFailed(domain.EnginePostgreSQL, "failed to get row values", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, queryFailed(domain.EnginePostgreSQL, "error iterating rows", err)
	}
	return results, nil
}

// Close uses its own deadline so a canceled call context still lets the
// terminate message go out.
func (c *postgresConnection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.log.Debugf("Closing PostgreSQL connection")
	return c.conn.Close(ctx)
}
