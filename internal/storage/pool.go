package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"

	"github.com/finwire/finwire/internal/config"
	"github.com/finwire/finwire/internal/lib/apperr"
)

// Opener открывает и проверяет подключение к базе.
type Opener func(ctx context.Context) (*sql.DB, error)

// Pool лениво открывает общее для процесса подключение к PostgreSQL.
// Одновременные первые вызовы DB схлопываются в одну попытку подключения,
// неудачная попытка не кешируется.
type Pool struct {
	open    Opener
	timeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	db    *sql.DB
}

// NewPool создаёт Pool; подключение откроется при первом вызове DB.
func NewPool(open Opener, connectTimeout time.Duration) *Pool {
	return &Pool{open: open, timeout: connectTimeout}
}

// PgxOpener возвращает Opener для драйвера pgx с настройками пула соединений.
func PgxOpener(cfg config.Storage) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		const op = "storage.open"
		db, err := sql.Open("pgx", cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return db, nil
	}
}

var errUnavailable = apperr.ServiceUnavailable("storage unavailable")

// DB возвращает открытое подключение, при необходимости подключаясь.
// Если подключение не удалось за connect timeout, возвращается ServiceUnavailable.
func (p *Pool) DB(ctx context.Context) (*sql.DB, error) {
	if db := p.current(); db != nil {
		return db, nil
	}

	ch := p.group.DoChan("connect", func() (any, error) {
		if db := p.current(); db != nil {
			return db, nil
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		db, err := p.open(cctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.db = db
		p.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, errUnavailable.WithCause(res.Err)
		}
		return res.Val.(*sql.DB), nil
	case <-ctx.Done():
		return nil, errUnavailable.WithCause(ctx.Err())
	}
}

func (p *Pool) current() *sql.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Close закрывает подключение, если оно было открыто.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
