package registry

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/lacchain/trustlist/pkg/obslog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client wraps a pooled *sql.DB connection to the relational store backing
// the five entities of the data model.
type Client struct {
	db     *sql.DB
	logger *log.Logger

	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default component logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithPool overrides the connection pool tuning parameters.
func WithPool(maxOpen, maxIdle int, idleTime, lifetime time.Duration) ClientOption {
	return func(c *Client) {
		c.maxOpenConns = maxOpen
		c.maxIdleConns = maxIdle
		c.connMaxIdleTime = idleTime
		c.connMaxLifetime = lifetime
	}
}

// NewClient opens a pooled connection to databaseURL (a postgres:// DSN).
func NewClient(databaseURL string, opts ...ClientOption) (*Client, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("registry: database url cannot be empty")
	}

	c := &Client{
		logger:          obslog.New("registry"),
		maxOpenConns:    25,
		maxIdleConns:    5,
		connMaxIdleTime: 5 * time.Minute,
		connMaxLifetime: time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("registry: open database: %w", err)
	}

	db.SetMaxOpenConns(c.maxOpenConns)
	db.SetMaxIdleConns(c.maxIdleConns)
	db.SetConnMaxIdleTime(c.connMaxIdleTime)
	db.SetConnMaxLifetime(c.connMaxLifetime)

	c.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: ping database: %w", err)
	}

	c.logger.Printf("connected to database (max_open=%d, max_idle=%d)", c.maxOpenConns, c.maxIdleConns)
	return c, nil
}

// DB returns the underlying *sql.DB for repositories and tests.
func (c *Client) DB() *sql.DB { return c.db }

// NewClientFromDB wraps an already-open *sql.DB (e.g. a go-sqlmock
// connection) without dialing, for use by other packages' tests.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db, logger: obslog.New("registry")}
}

// Close closes the pooled connection.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Migration is a single embedded SQL migration file.
type Migration struct {
	Version  string
	Filename string
	SQL      string
}

// MigrateUp applies all pending migrations in version order, recording each
// in the schema_migrations table.
func (c *Client) MigrateUp(ctx context.Context) error {
	c.logger.Println("running schema migrations...")

	migrations, err := c.getMigrations()
	if err != nil {
		return fmt.Errorf("registry: list migrations: %w", err)
	}

	applied, err := c.getAppliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("registry: list applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			c.logger.Printf("  skipping %s (already applied)", m.Version)
			continue
		}
		c.logger.Printf("  applying %s...", m.Version)
		if err := c.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("registry: apply migration %s: %w", m.Version, err)
		}
	}

	c.logger.Println("migrations complete")
	return nil
}

func (c *Client) getMigrations() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		filename := d.Name()
		migrations = append(migrations, Migration{
			Version:  strings.TrimSuffix(filename, ".sql"),
			Filename: filename,
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (c *Client) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (c *Client) applyMigration(ctx context.Context, m Migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("exec migration sql: %w", err)
	}

	return tx.Commit()
}
