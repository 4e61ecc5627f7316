package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ProcessListCommand is the statement used to sample running queries.
// The server lists it among the running queries, so it is never counted.
const ProcessListCommand = "SHOW FULL PROCESSLIST"

// infoColumn is the position of `Info` in the classic 8 column layout
const infoColumn = 7

// ErrFetch wraps any failure to read the process list
var ErrFetch = errors.New("fetch process list")

// QuerySource gives the raw text of the queries running right now
type QuerySource interface {
	Fetch(ctx context.Context) ([]string, error)
}

// MySQLProcessList reads the running queries with SHOW FULL PROCESSLIST
type MySQLProcessList struct {
	db      *sql.DB
	verbose bool
}

// NewMySQLProcessList wraps an open database handle
func NewMySQLProcessList(db *sql.DB, verbose bool) *MySQLProcessList {
	return &MySQLProcessList{db: db, verbose: verbose}
}

// OpenMySQLProcessList connects to the server behind dsn and checks the
// connection before returning
func OpenMySQLProcessList(ctx context.Context, dsn string, verbose bool) (*MySQLProcessList, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	// one sampling connection is all the profiler needs
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return NewMySQLProcessList(db, verbose), nil
}

// Fetch returns the `Info` column of every process that runs a query.
// Idle connections (NULL or empty Info) are skipped.
func (p *MySQLProcessList) Fetch(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, ProcessListCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	info := infoIndex(columns)
	if info < 0 {
		return nil, fmt.Errorf("%w: no Info column in %v", ErrFetch, columns)
	}

	// MySQL returns 8 columns, MariaDB adds `Progress`; scan whatever comes
	values := make([]sql.RawBytes, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	queries := []string{}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			if p.verbose {
				log.Printf("Error scanning process list row: %v\n", err)
			}
			continue
		}
		if len(values[info]) > 0 {
			queries = append(queries, string(values[info]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return queries, nil
}

// Close releases the database handle
func (p *MySQLProcessList) Close() error {
	return p.db.Close()
}

func infoIndex(columns []string) int {
	for i, c := range columns {
		if strings.EqualFold(c, "Info") {
			return i
		}
	}
	if len(columns) > infoColumn {
		return infoColumn
	}
	return -1
}
