package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"unicode/utf8"

	"github.com/go-sql-driver/mysql"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
)

// SQLOpener builds a *sql.DB from a driver config without dialing
type SQLOpener func(config *mysql.Config) (*sql.DB, error)

func openMySQL(config *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// MySQLAdapter serves MySQL and MariaDB through database/sql with a pool
// capped at one connection and owned by a single call.
type MySQLAdapter struct {
	open SQLOpener
	log  logging.Logger
}

// NewMySQLAdapter creates the MySQL-compatible engine adapter
func NewMySQLAdapter() *MySQLAdapter {
	return NewMySQLAdapterWithOpener(openMySQL)
}

// NewMySQLAdapterWithOpener swaps how the *sql.DB is created
func NewMySQLAdapterWithOpener(open SQLOpener) *MySQLAdapter {
	return &MySQLAdapter{open: open, log: logging.New("connector:mysql")}
}

func (a *MySQLAdapter) Name() string {
	return "mysql"
}

func (a *MySQLAdapter) Prepare(queryText string) (interfaces.Statement, error) {
	return prepareSQL(domain.EngineMySQL, queryText)
}

func (a *MySQLAdapter) Connect(ctx context.Context, d domain.DataSourceDescriptor) (interfaces.Connection, error) {
	config, err := BuildMySQLParams(d)
	if err != nil {
		return nil, err
	}

	a.log.Debugf("Opening %s connection to %s", d.Engine, d.Target())
	db, err := a.open(config)
	if err != nil {
		return nil, connectionFailed(d.Engine, "failed to open mysql connection", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// database/sql dials lazily
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, connectionFailed(d.Engine, "failed to connect to mysql", err)
	}
	return &mysqlConnection{db: db, engine: d.Engine, log: a.log}, nil
}

type mysqlConnection struct {
	db     *sql.DB
	engine domain.EngineType
	log    logging.Logger
}

func (c *mysqlConnection) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return connectionFailed(c.engine, "failed to ping mysql database", err)
	}
	return nil
}

func (c *mysqlConnection) Query(ctx context.Context, stmt interfaces.Statement) ([]map[string]any, error) {
	rows, err := c.db.QueryContext(ctx, stmt.String())
	if err != nil {
		return nil, queryFailed(c.engine, "failed to execute query", err)
	}
	defer rows.Close()

	results, err := scanRows(rows)
	if err != nil {
		return nil, queryFailed(c.engine, "failed to read result set", err)
	}
	return results, nil
}

func (c *mysqlConnection) Close() error {
	c.log.Debugf("Closing %s connection", c.engine)
	return c.db.Close()
}

// scanRows drains rows into maps keyed by column name. Text columns arrive as
// []byte and are returned as strings when they are valid UTF-8.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok && utf8.Valid(b) {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}
