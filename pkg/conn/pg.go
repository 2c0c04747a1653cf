package conn

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost     = "localhost"
	defaultPostgresPort     = 5432
	defaultPostgresDatabase = "marketdata"
	defaultPostgresSSLMode  = "disable"
)

// Option defines connection options for the bar store's PostgreSQL.
type Option struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	db *gorm.DB
}

// New connects to PostgreSQL with the provided options.
func New(option Option) (*Client, error) {
	db, err := gorm.Open(postgres.Open(option.dsn()), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dsn renders the keyword/value connection string. Bars are stored with
// UTC timestamps, so the session time zone is pinned to UTC.
func (opt Option) dsn() string {
	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	database := opt.Database
	if database == "" {
		database = defaultPostgresDatabase
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	parts := []string{
		"host=" + host,
		fmt.Sprintf("port=%d", port),
		"dbname=" + database,
		"sslmode=" + sslMode,
		"TimeZone=UTC",
	}
	if opt.User != "" {
		parts = append(parts, "user="+opt.User)
	}
	if opt.Password != "" {
		parts = append(parts, "password="+opt.Password)
	}
	return strings.Join(parts, " ")
}
