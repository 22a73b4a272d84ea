package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"dataportal/internal/logger"
	"dataportal/internal/models"
)

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusConnected Status = "connected"
	StatusError     Status = "error"
)

var ErrNotConnected = errors.New("connection provider is not connected")

// ConnectionProvider owns the pool of one model database and remembers the
// outcome of the last connection test.
type ConnectionProvider struct {
	config   models.ConnectionConfig
	platform Platform
	lggr     logger.Logger

	attempts uint
	delay    time.Duration

	mu       sync.RWMutex
	db       *sqlx.DB
	status   Status
	lastErr  error
	testedAt time.Time
}

func NewConnectionProvider(cfg models.ConnectionConfig, lggr logger.Logger) (*ConnectionProvider, error) {
	if cfg.Driver == "" {
		cfg.Driver = "pgx"
	}
	platform, err := PlatformForDriver(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", cfg.Database, err)
	}
	return &ConnectionProvider{
		config:   cfg,
		platform: platform,
		lggr:     lggr.Named("ConnectionProvider").With("database", cfg.Database),
		attempts: 3,
		delay:    500 * time.Millisecond,
		status:   StatusUnknown,
	}, nil
}

// WithRetry overrides how many times Test pings before giving up.
func (p *ConnectionProvider) WithRetry(attempts uint, delay time.Duration) *ConnectionProvider {
	p.attempts = attempts
	p.delay = delay
	return p
}

func (p *ConnectionProvider) DatabaseName() string { return p.config.Database }

func (p *ConnectionProvider) Config() models.ConnectionConfig { return p.config }

func (p *ConnectionProvider) Platform() Platform { return p.platform }

// DSN builds the driver data source name, preferring an explicit URL.
func (p *ConnectionProvider) DSN() string {
	c := p.config
	if c.URL != "" {
		return c.URL
	}

	switch c.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(portOr(c.Port, 3306)))
		mc.DBName = c.DBName
		mc.ParseTime = true
		return mc.FormatDSN()
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(portOr(c.Port, 5432))),
			Path:     "/" + c.DBName,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	}
}

func portOr(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}

// Open creates the pool. Drivers connect lazily, so Open only fails on a
// malformed configuration.
func (p *ConnectionProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openLocked()
}

func (p *ConnectionProvider) openLocked() error {
	if p.db != nil {
		return nil
	}
	db, err := sqlx.Open(p.config.Driver, p.DSN())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p.config.Database, err)
	}
	maxConns := p.config.MaxConns
	if maxConns == 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
	p.db = db
	return nil
}

// Test pings the database, retrying a few times, and records the result.
func (p *ConnectionProvider) Test(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.openLocked()
	if err == nil {
		err = retry.Do(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return p.db.PingContext(pingCtx)
		},
			retry.Context(ctx),
			retry.Attempts(p.attempts),
			retry.Delay(p.delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(attempt uint, err error) {
				p.lggr.Debugw("Ping failed, retrying", "attempt", attempt+1, "err", err)
			}),
		)
	}

	p.testedAt = time.Now()
	p.lastErr = err
	if err != nil {
		p.status = StatusError
		p.lggr.Warnw("Connection test failed", "err", err)
		return fmt.Errorf("connection %s: %w", p.config.Database, err)
	}
	p.status = StatusConnected
	p.lggr.Infow("Connection test succeeded", "platform", p.platform.Name())
	return nil
}

func (p *ConnectionProvider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// ErrorMessage is the last connection test failure, empty when healthy.
func (p *ConnectionProvider) ErrorMessage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastErr == nil {
		return ""
	}
	return p.lastErr.Error()
}

func (p *ConnectionProvider) TestedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.testedAt
}

func (p *ConnectionProvider) DB() *sqlx.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// ReadModel introspects the live database into a model database.
func (p *ConnectionProvider) ReadModel(ctx context.Context) (*models.Database, error) {
	db := p.DB()
	if db == nil {
		return nil, ErrNotConnected
	}
	schemas := p.config.Schemas
	if len(schemas) == 0 && p.config.Driver == "mysql" && p.config.DBName != "" {
		schemas = []string{p.config.DBName}
	}
	return p.platform.ReadModel(ctx, db, p.config.Database, schemas)
}

func (p *ConnectionProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.status = StatusUnknown
	return err
}
