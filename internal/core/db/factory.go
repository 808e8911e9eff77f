// Package db provides the persistence abstraction layer: one call-site
// contract (Execute/Commit/Rollback/Close) that runs unmodified against
// either the embedded file-based store or the networked client-server store.
//
// Backend selection happens exactly once per process. Dialect differences
// are rewritten by a rule-table translator, result shapes are normalized to
// ordered name-to-value rows, and the required schema is reconciled
// opportunistically on every connection acquisition.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/linguaflow/linguaflow/internal/types"
)

// Connection timing applied once at factory construction, not per call.
// 30s lock wait bounds the embedded store's single-writer contention;
// the same budget caps client-server lock and statement time.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultLockWait       = 30 * time.Second
	defaultFallbackPath   = "linguaflow.db"
)

// FallbackPolicy governs whether, and to what, a failed connection may
// downgrade. Both downgrades are disabled in production: silently switching
// backends mid-deployment splits data across two stores with no way to
// reconcile them later.
type FallbackPolicy struct {
	// AllowEmbeddedFallback permits client-server open failures to
	// downgrade to the embedded store.
	AllowEmbeddedFallback bool

	// AllowMemoryFallback permits embedded open failures (unwritable
	// filesystem) to downgrade to an ephemeral in-memory store, explicitly
	// accepting data loss.
	AllowMemoryFallback bool
}

// DefaultFallbackPolicy returns the policy for the given environment:
// no downgrades in production, the full fallback chain otherwise.
func DefaultFallbackPolicy(production bool) FallbackPolicy {
	if production {
		return FallbackPolicy{}
	}
	return FallbackPolicy{AllowEmbeddedFallback: true, AllowMemoryFallback: true}
}

// Options configures a Factory.
type Options struct {
	Backend    types.Backend
	Params     types.ConnectionParams
	Production bool
	Policy     FallbackPolicy

	// Schema, when set, is reconciled (best effort) on every acquisition.
	// Its unique keys also feed the translator's conflict metadata.
	Schema *SchemaSpec

	// FallbackPath is the embedded store file used when a non-production
	// client-server connection downgrades. Defaults to linguaflow.db.
	FallbackPath string

	ConnectTimeout time.Duration
	LockWait       time.Duration

	Logger *slog.Logger
}

// Factory opens one raw backend connection per acquisition. There is no
// cross-request pooling: each unit of work pays the full connection-open
// cost and releases the connection when its handle closes. A downgrade
// decision is sticky for the life of the process.
type Factory struct {
	opts      Options
	log       *slog.Logger
	conflicts map[string][]string

	mu      sync.Mutex
	backend types.Backend
	params  types.ConnectionParams

	// The in-memory store is one shared database per factory, held open by a
	// pinning connection. Without the pin, the store would be destroyed the
	// moment the last per-acquisition connection closed, wiping committed
	// data between units of work.
	memOnce sync.Once
	memDSN  string
	memPin  *sqlx.DB
}

// NewFactory builds a Factory from options, applying defaults.
func NewFactory(opts Options) *Factory {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.LockWait <= 0 {
		opts.LockWait = defaultLockWait
	}
	if opts.FallbackPath == "" {
		opts.FallbackPath = defaultFallbackPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var conflicts map[string][]string
	if opts.Schema != nil {
		conflicts = opts.Schema.ConflictKeys()
	}
	return &Factory{
		opts:      opts,
		log:       opts.Logger,
		conflicts: conflicts,
		backend:   opts.Backend,
		params:    opts.Params,
	}
}

// Backend returns the backend currently in effect, reflecting any sticky
// downgrade taken on an earlier acquisition.
func (f *Factory) Backend() types.Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backend
}

// Acquire opens a fresh connection, applies session settings, reconciles the
// schema, and returns a Handle the caller must drive through Close. The
// fallback chain (client-server -> embedded -> in-memory) applies only where
// the policy permits; in production a client-server failure is fatal.
func (f *Factory) Acquire(ctx context.Context) (*Handle, error) {
	f.mu.Lock()
	backend, params := f.backend, f.params
	f.mu.Unlock()

	conn, err := f.open(ctx, backend, params)
	if err != nil {
		switch backend {
		case types.BackendClientServer:
			if f.opts.Production {
				f.log.Error("client-server connection failed in production; refusing fallback",
					"host", params.Host, "database", params.Database, "error", err)
				return nil, err
			}
			if !f.opts.Policy.AllowEmbeddedFallback {
				return nil, err
			}
			f.log.Warn("client-server store unreachable; downgrading to embedded store",
				"path", f.opts.FallbackPath, "error", err)
			f.settle(types.BackendEmbedded, types.ConnectionParams{Path: f.opts.FallbackPath})
			return f.Acquire(ctx)

		case types.BackendEmbedded:
			if params.Path == types.MemoryPath || !f.opts.Policy.AllowMemoryFallback {
				return nil, err
			}
			f.log.Warn("embedded store unavailable; downgrading to ephemeral in-memory store, data will not survive restart",
				"path", params.Path, "error", err)
			f.settle(types.BackendEmbedded, types.ConnectionParams{Path: types.MemoryPath})
			return f.Acquire(ctx)
		}
		return nil, err
	}

	if f.opts.Schema != nil {
		if rerr := f.opts.Schema.Reconcile(conn, backend, f.log); rerr != nil {
			// Best effort: a cosmetic column gap must not take the
			// application down. The fatal backend-selection path above is
			// never reachable from here.
			f.log.Warn("schema reconciliation incomplete", "backend", backend.String(), "error", rerr)
		}
	}

	return &Handle{
		backend:    backend,
		conn:       conn,
		translator: NewTranslator(backend, f.conflicts),
		log:        f.log,
	}, nil
}

// WithHandle runs fn with a freshly acquired handle. On a nil return the
// transaction commits; on error or panic it rolls back; the handle closes on
// every exit path.
func (f *Factory) WithHandle(ctx context.Context, fn func(*Handle) error) (err error) {
	h, aerr := f.Acquire(ctx)
	if aerr != nil {
		return aerr
	}

	committed := false
	defer func() {
		if !committed {
			_ = h.Rollback()
		}
		if cerr := h.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = fn(h); err != nil {
		return err
	}
	if err = h.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (f *Factory) settle(backend types.Backend, params types.ConnectionParams) {
	f.mu.Lock()
	f.backend = backend
	f.params = params
	f.mu.Unlock()
}

// open dials one raw connection, verifies it, and applies backend session
// settings. The pool is capped at a single connection so session settings
// and the handle's transaction always target the same raw connection.
func (f *Factory) open(ctx context.Context, backend types.Backend, params types.ConnectionParams) (*sqlx.DB, error) {
	if backend == types.BackendEmbedded && params.Path != types.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(params.Path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s store directory: %w", types.ErrConnection, backend.String(), err)
		}
	}

	conn, err := sqlx.Open(backend.DriverName(), f.dataSource(backend, params))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %w", types.ErrConnection, backend.String(), err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, f.opts.ConnectTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open %s store: %w", types.ErrConnection, backend.String(), err)
	}

	for _, stmt := range sessionSettings(backend, f.opts.LockWait) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: session setting %q: %w", types.ErrConnection, stmt, err)
		}
	}
	return conn, nil
}

// dataSource builds the driver DSN. Embedded session settings (bounded lock
// wait, WAL journal, full durability) travel as DSN parameters; client-server
// settings are applied as SET statements after connect.
func (f *Factory) dataSource(backend types.Backend, params types.ConnectionParams) string {
	if backend == types.BackendEmbedded {
		if params.Path == types.MemoryPath {
			return f.memoryDSN()
		}
		return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=FULL",
			params.Path, f.opts.LockWait.Milliseconds())
	}

	sslMode := params.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", params.Host),
		fmt.Sprintf("port=%d", params.Port),
		fmt.Sprintf("dbname=%s", params.Database),
		fmt.Sprintf("sslmode=%s", sslMode),
		fmt.Sprintf("connect_timeout=%d", int(f.opts.ConnectTimeout.Seconds())),
	}
	if params.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", params.User))
	}
	if params.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", params.Password))
	}
	return strings.Join(parts, " ")
}

// memoryDSN names this factory's in-memory database. A plain :memory: DSN
// gives every connection a private database, so a row committed by one unit
// of work would be invisible to the next; a shared-cache named database keeps
// one store per factory while the unique name isolates concurrent factories
// in the same process. The pin connection stays open for the factory's life.
func (f *Factory) memoryDSN() string {
	f.memOnce.Do(func() {
		f.memDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=%d",
			uuid.NewString(), f.opts.LockWait.Milliseconds())
		pin, err := sqlx.Open(types.BackendEmbedded.DriverName(), f.memDSN)
		if err == nil {
			err = pin.Ping()
		}
		if err != nil {
			f.log.Warn("could not pin in-memory store; data will not survive across acquisitions", "error", err)
			return
		}
		f.memPin = pin
	})
	return f.memDSN
}

func sessionSettings(backend types.Backend, lockWait time.Duration) []string {
	if backend != types.BackendClientServer {
		return nil
	}
	ms := lockWait.Milliseconds()
	return []string{
		fmt.Sprintf("SET lock_timeout = %d", ms),
		fmt.Sprintf("SET statement_timeout = %d", ms),
	}
}
