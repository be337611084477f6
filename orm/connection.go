package orm

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DefaultConnection is the connection key used when none is given.
const DefaultConnection = "main"

// ConnConfig describes one named database.
// For SQLite, Database is the file path (":memory:" when empty) and the
// network fields are ignored.
type ConnConfig struct {
	Driver   string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Params   map[string]string
}

// HandlerOption configures a ConnectionHandler.
type HandlerOption func(*ConnectionHandler)

// WithLogger sets the logger used for connection events.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *ConnectionHandler) { h.log = l }
}

// WithQueryLogger makes every connection the handler opens log its queries.
func WithQueryLogger(l Logger) HandlerOption {
	return func(h *ConnectionHandler) { h.queryLogger = l }
}

// WithDefaultKey overrides the key Connect uses when given an empty key.
func WithDefaultKey(key string) HandlerOption {
	return func(h *ConnectionHandler) { h.defaultKey = key }
}

// ConnectionHandler owns a single database handle, selected from a set of
// named configurations. Calling Connect again swaps the handle.
type ConnectionHandler struct {
	configs     map[string]ConnConfig
	defaultKey  string
	key         string
	db          *DB
	log         zerolog.Logger
	queryLogger Logger
}

// NewConnectionHandler stores configs and connects to the default key.
func NewConnectionHandler(ctx context.Context, configs map[string]ConnConfig, opts ...HandlerOption) (*ConnectionHandler, error) {
	h := newHandler(configs, opts)
	if err := h.Connect(ctx, ""); err != nil {
		return nil, err
	}
	return h, nil
}

// NewConnectionHandlerWithDB attaches an already opened *sql.DB under key.
// Further configurations can still be reached through Connect if passed
// with WithConfigs.
func NewConnectionHandlerWithDB(key string, raw *sql.DB, d Dialect, opts ...HandlerOption) *ConnectionHandler {
	h := newHandler(nil, opts)
	h.key = key
	h.db = h.wrap(raw, d)
	return h
}

// WithConfigs adds named configurations to a handler.
func WithConfigs(configs map[string]ConnConfig) HandlerOption {
	return func(h *ConnectionHandler) {
		maps.Copy(h.configs, configs)
	}
}

func newHandler(configs map[string]ConnConfig, opts []HandlerOption) *ConnectionHandler {
	h := &ConnectionHandler{
		configs:    make(map[string]ConnConfig, len(configs)),
		defaultKey: DefaultConnection,
		log:        zerolog.Nop(),
	}
	maps.Copy(h.configs, configs)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect opens the database configured under key and makes it the active
// handle. An empty key selects the default connection. The previous handle is
// closed only once the new one is reachable.
func (h *ConnectionHandler) Connect(ctx context.Context, key string) error {
	if key == "" {
		key = h.defaultKey
	}
	cfg, ok := h.configs[key]
	if !ok {
		return &ConnectionError{Key: key, Err: ErrUnknownConnection}
	}

	db, err := h.open(ctx, cfg)
	if err != nil {
		return &ConnectionError{Key: key, Err: err}
	}

	prev := h.db
	h.db, h.key = db, key
	if prev != nil {
		if err := prev.Close(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to close previous database connection")
		}
	}

	h.log.Debug().Str("key", key).Str("driver", db.d.Name()).Msg("Database connection established")
	return nil
}

// DB returns the active handle, or nil if none is open.
func (h *ConnectionHandler) DB() *DB { return h.db }

// Key returns the key of the active connection.
func (h *ConnectionHandler) Key() string { return h.key }

// Keys returns the configured connection keys in sorted order.
func (h *ConnectionHandler) Keys() []string {
	return slices.Sorted(maps.Keys(h.configs))
}

// Close closes the active handle.
func (h *ConnectionHandler) Close() error {
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

func (h *ConnectionHandler) open(ctx context.Context, cfg ConnConfig) (*DB, error) {
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var raw *sql.DB
	switch d {
	case MySQL:
		raw, err = sql.Open("mysql", mysqlDSN(cfg))
	case PostgreSQL:
		var pcfg *pgx.ConnConfig
		pcfg, err = pgx.ParseConfig(postgresDSN(cfg))
		if err == nil {
			raw = stdlib.OpenDB(*pcfg)
		}
	case SQLite:
		raw, err = sql.Open("sqlite", sqliteDSN(cfg))
		if err == nil && isMemorySQLite(cfg) {
			// every pooled connection would otherwise get its own empty database
			raw.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	return h.wrap(raw, d), nil
}

func (h *ConnectionHandler) wrap(raw *sql.DB, d Dialect) *DB {
	db := New(raw, d)
	if h.queryLogger != nil {
		db = db.Debug(h.queryLogger)
	}
	return db
}

func mysqlDSN(cfg ConnConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(hostOr(cfg, "127.0.0.1"), strconv.Itoa(portOr(cfg, 3306)))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if len(cfg.Params) > 0 {
		mc.Params = maps.Clone(cfg.Params)
	}
	return mc.FormatDSN()
}

func postgresDSN(cfg ConnConfig) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(hostOr(cfg, "127.0.0.1"), strconv.Itoa(portOr(cfg, 5432))),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if len(cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range cfg.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sqliteDSN(cfg ConnConfig) string {
	dsn := cfg.Database
	if dsn == "" {
		dsn = ":memory:"
	}
	if len(cfg.Params) > 0 {
		q := url.Values{}
		for k, v := range cfg.Params {
			q.Set(k, v)
		}
		dsn += "?" + q.Encode()
	}
	return dsn
}

func isMemorySQLite(cfg ConnConfig) bool {
	return cfg.Database == "" || cfg.Database == ":memory:" ||
		strings.Contains(cfg.Database, "mode=memory") || cfg.Params["mode"] == "memory"
}

func hostOr(cfg ConnConfig, fallback string) string {
	if cfg.Host == "" {
		return fallback
	}
	return cfg.Host
}

func portOr(cfg ConnConfig, fallback int) int {
	if cfg.Port == 0 {
		return fallback
	}
	return cfg.Port
}
