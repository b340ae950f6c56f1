package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Rebind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Options struct {
	// DatabaseURL selects PostgreSQL when set; otherwise Path is used as a SQLite file.
	DatabaseURL string
	Path        string
}

// Open returns a pinged connection pool and the dialect it speaks.
func Open(ctx context.Context, opts Options) (*sql.DB, Dialect, error) {
	if opts.DatabaseURL != "" {
		db, err := sql.Open("postgres", opts.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("db open: %w", err)
		}
		if err := ping(ctx, db); err != nil {
			db.Close()
			return nil, "", err
		}
		return db, Postgres, nil
	}

	if opts.Path == "" {
		return nil, "", fmt.Errorf("db open: empty sqlite path")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("db open: %w", err)
		}
	}

	dsn, err := sqliteDSN(opts.Path)
	if err != nil {
		return nil, "", fmt.Errorf("db open: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("db open: %w", err)
	}
	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, SQLite, nil
}

// sqliteDSN builds a file: URI with the path escaped, so '?', '#' and '%'
// in directory names survive. busy_timeout lets concurrent writers wait
// on the file lock.
func sqliteDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String(), nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
