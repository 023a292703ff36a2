// Package postgres stores the family document in a PostgreSQL table and
// manages that table's schema with golang-migrate.
package postgres

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

const (
	defaultMaxOpen          = 10
	defaultMaxIdle          = 5
	defaultLifetime         = 30 * time.Minute
	defaultIdleTime         = 5 * time.Minute
	defaultStatementTimeout = 30 * time.Second
	pingTimeout             = 5 * time.Second
	busyPoolRatio           = 0.8
)

// sqlOpen is swapped out by tests.
var sqlOpen = sql.Open

// Config describes where the family database lives and how the pool behaves.
// Zero values fall back to the package defaults.
type Config struct {
	Host             string
	Port             int
	Database         string
	Username         string
	Password         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	StatementTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = defaultStatementTimeout
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpen
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultMaxIdle
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = defaultIdleTime
	}
	return c
}

// Connection owns the *sql.DB shared by the document store and the migrator.
type Connection struct {
	db        *sql.DB
	logger    logging.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConnection opens a pool for cfg and refuses to return until the server
// answers a ping.
func NewConnection(cfg Config, log logging.Logger) (*Connection, error) {
	cfg = cfg.withDefaults()
	db, err := sqlOpen("postgres", DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database connection")
	}
	tunePool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed")
	}

	log.Info("family database reachable",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.Database),
		logging.Int("max_open", cfg.MaxOpenConns),
	)
	return &Connection{db: db, logger: log}, nil
}

// NewConnectionWithDB adopts an already opened pool as is.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	return &Connection{db: db, logger: log}
}

func tunePool(db *sql.DB, cfg Config) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

func (c *Connection) DB() *sql.DB { return c.db }

// HealthCheck backs the readiness probe. A busy pool is logged, not failed.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	if s := c.db.Stats(); s.OpenConnections > 0 {
		if ratio := float64(s.InUse) / float64(s.OpenConnections); ratio > busyPoolRatio {
			c.logger.Warn("family database pool nearly exhausted",
				logging.Int("in_use", s.InUse),
				logging.Int("open", s.OpenConnections),
				logging.Float64("ratio", ratio),
			)
		}
	}
	return nil
}

// Close releases the pool. Later calls return the first result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
		if c.closeErr != nil {
			c.logger.Error("closing family database failed", logging.Err(c.closeErr))
			return
		}
		c.logger.Debug("family database closed")
	})
	return c.closeErr
}

// DSN renders cfg as a lib/pq URL, applying the same defaults as NewConnection.
func DSN(cfg Config) string {
	cfg = cfg.withDefaults()
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	q.Set("statement_timeout", strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
