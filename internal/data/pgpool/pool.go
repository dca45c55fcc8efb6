package pgpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// Conn is the slice of *pgx.Conn the pipeline needs. Narrowing it here lets
// tests hand the pool fake connections.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Factory func(ctx context.Context) (Conn, error)

// PgxFactory dials the pgvector database.
func PgxFactory(dsn string) Factory {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("pgx connect: %w", err)
		}
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("registering vector types: %w", err)
		}
		return conn, nil
	}
}

var ErrPoolClosed = errors.New("pgpool: pool is closed")

// Pool hands out database connections up to a fixed maximum. Acquirers
// beyond the maximum poll with a short backoff until a connection frees up.
type Pool struct {
	mu        sync.Mutex
	available []Conn
	inUse     map[Conn]bool
	pending   int
	factory   Factory
	maxSize   int
	closed    bool
	logger    *logger_i.Logger
}

// NewPool eagerly creates minSize warm connections. If any of them fails,
// the ones already created are closed and the error is fatal; a half-built
// pool is never returned.
func NewPool(ctx context.Context, factory Factory, minSize int, maxSize int) (*Pool, error) {
	p := &Pool{
		inUse:   make(map[Conn]bool),
		factory: factory,
		maxSize: maxSize,
		logger:  logger_i.NewLogger("PgPool"),
	}

	for i := 0; i < minSize; i++ {
		conn, err := factory(ctx)
		if err != nil {
			for _, c := range p.available {
				_ = c.Close(ctx)
			}
			return nil, fmt.Errorf("creating warm connection %d/%d: %w", i+1, minSize, err)
		}
		p.available = append(p.available, conn)
	}

	p.logger.Info("Pool initialized", "warmConnections", len(p.available), "maxSize", maxSize)
	return p, nil
}

// Lease is a scoped handle to one connection. Release is idempotent so it is
// safe to defer on every exit path.
type Lease struct {
	Conn     Conn
	pool     *Pool
	released bool
	mu       sync.Mutex
}

func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.pool.release(l.Conn)
}

func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	for {
		conn, err, retry := p.tryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return &Lease{Conn: conn, pool: p}, nil
		}
		if !retry {
			return nil, ErrPoolClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.PoolAcquireBackoff):
		}
	}
}

func (p *Pool) tryAcquire(ctx context.Context) (Conn, error, bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed, false
	}

	if n := len(p.available); n > 0 {
		conn := p.available[n-1]
		p.available = p.available[:n-1]
		p.inUse[conn] = true
		p.mu.Unlock()
		return conn, nil, false
	}

	// Grow lazily. The reservation keeps concurrent acquirers from dialing
	// past maxSize while the lock is dropped for the dial itself.
	if len(p.inUse)+p.pending < p.maxSize {
		p.pending++
		p.mu.Unlock()

		conn, err := p.factory(ctx)

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("growing pool: %w", err), false
		}
		if p.closed {
			p.mu.Unlock()
			_ = conn.Close(ctx)
			return nil, ErrPoolClosed, false
		}
		p.inUse[conn] = true
		p.mu.Unlock()
		return conn, nil, false
	}

	p.mu.Unlock()
	return nil, nil, true
}

func (p *Pool) release(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inUse[conn] {
		return
	}
	delete(p.inUse, conn)
	if p.closed {
		_ = conn.Close(context.Background())
		return
	}
	p.available = append(p.available, conn)
}

// Close releases every connection. Broken connections are tolerated; their
// close errors are logged and swallowed.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	for _, conn := range p.available {
		if err := conn.Close(ctx); err != nil {
			p.logger.Warn("Error closing connection", "error", err)
		}
	}
	for conn := range p.inUse {
		if err := conn.Close(ctx); err != nil {
			p.logger.Warn("Error closing in-use connection", "error", err)
		}
	}
	p.available = nil
	p.inUse = make(map[Conn]bool)
	p.logger.Info("Pool closed")
}

// Stats reports the current pool occupancy.
func (p *Pool) Stats() (available int, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available), len(p.inUse)
}
