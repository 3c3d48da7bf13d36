package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// CUSTOMER DIRECTORY CLIENT
// PostgreSQL-backed lookup by phone number
// ============================================

// querier is the subset of *pgxpool.Pool the client needs
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client looks up customers in the `customers` table
type Client struct {
	db   querier
	pool *pgxpool.Pool
}

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DSN builds a postgres connection URL
func (c ConnectionConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewClient creates a pooled directory client. The pool connects lazily.
func NewClient(ctx context.Context, cfg ConnectionConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory pool: %w", err)
	}

	return &Client{db: pool, pool: pool}, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Ping(ctx)
}

// Close releases the pool
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// lookupQuery matches any candidate and prefers the earliest one in the list.
const lookupQuery = `
	SELECT id, nombre, nombre_completo, rut, telefono, fecha_creacion
	FROM customers
	WHERE telefono = ANY($1)
	ORDER BY array_position($1::text[], telefono)
	LIMIT 1
`

// Lookup finds the customer owning any of the candidate phone values
func (c *Client) Lookup(ctx context.Context, candidates []string) (*Customer, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var customer Customer
	err := c.db.QueryRow(ctx, lookupQuery, candidates).Scan(
		&customer.ID,
		&customer.Name,
		&customer.FullName,
		&customer.RUT,
		&customer.Phone,
		&customer.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("customer lookup failed: %w", err)
	}

	return &customer, nil
}
