package nodes

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/dagflow-io/dagflow/flow"
)

// DatabaseNode runs one SQL statement against MySQL or SQLite.
//
// Config keys:
//   - driver: "mysql" or "sqlite" (required)
//   - dsn: driver-specific data source name (required)
//   - query: the SQL text, ?-style placeholders (required)
//   - params: positional arguments for the placeholders
//
// Output for SELECT (and other row-returning statements):
//   - rows: []map of column name to value
//   - count: number of rows
//
// Output for everything else:
//   - rows_affected: int64
//   - last_insert_id: int64 (0 when the driver does not report one)
//
// The node opens a fresh connection per execution. Workflows are not
// connection-pool-bound services; correctness and isolation win over reuse
// here.
type DatabaseNode struct {
	flow.Base
}

// NewDatabaseNode is the registry factory for the database kind.
func NewDatabaseNode(base flow.Base) (flow.Node, error) {
	return &DatabaseNode{Base: base}, nil
}

func (d *DatabaseNode) Validate() error {
	if err := d.Base.Validate(); err != nil {
		return err
	}
	driver, _ := d.Config()["driver"].(string)
	if driver == "" {
		return &flow.ConfigError{Field: "driver", Message: "driver is required"}
	}
	if !hasTemplate(driver) && driver != "mysql" && driver != "sqlite" {
		return &flow.ConfigError{Field: "driver", Message: "unsupported driver: " + driver}
	}
	if dsn, _ := d.Config()["dsn"].(string); dsn == "" {
		return &flow.ConfigError{Field: "dsn", Message: "dsn is required"}
	}
	if q, _ := d.Config()["query"].(string); q == "" {
		return &flow.ConfigError{Field: "query", Message: "query is required"}
	}
	return nil
}

func (d *DatabaseNode) Describe() flow.Description {
	return flow.Description{
		Description: "Executes a SQL statement and publishes rows or the affected count",
		Category:    "storage",
		Icon:        "database",
	}
}

func (d *DatabaseNode) Execute(ctx context.Context, inv flow.Invocation) flow.Result {
	driver, _ := inv.Config["driver"].(string)
	dsn, _ := inv.Config["dsn"].(string)
	query, _ := inv.Config["query"].(string)
	if driver == "" || dsn == "" || query == "" {
		return flow.Fail("driver, dsn, and query are required")
	}
	if driver != "mysql" && driver != "sqlite" {
		return flow.Fail("unsupported driver: " + driver)
	}

	var params []any
	if raw, ok := inv.Config["params"].([]any); ok {
		params = raw
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return flow.Fail("open database: " + err.Error())
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return flow.Fail("connect: " + err.Error())
	}

	if isRowQuery(query) {
		return d.queryRows(ctx, db, query, params)
	}
	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return flow.Fail("execute: " + err.Error())
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return flow.Ok(map[string]any{
		"rows_affected":  affected,
		"last_insert_id": lastID,
	})
}

func (d *DatabaseNode) queryRows(ctx context.Context, db *sql.DB, query string, params []any) flow.Result {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return flow.Fail("query: " + err.Error())
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return flow.Fail("columns: " + err.Error())
	}

	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return flow.Fail("scan: " + err.Error())
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			// Drivers hand back []byte for text columns; strings are what
			// templates and expressions downstream expect.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return flow.Fail("iterate rows: " + err.Error())
	}
	return flow.Ok(map[string]any{
		"rows":  out,
		"count": len(out),
	})
}

// isRowQuery reports whether the statement returns a row set.
func isRowQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") ||
		strings.HasPrefix(q, "WITH") ||
		strings.HasPrefix(q, "PRAGMA") ||
		strings.HasPrefix(q, "SHOW")
}
