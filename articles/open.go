package articles

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/db"
	"github.com/teranos/newsdesk/errors"
)

const postgresDialTimeout = 10 * time.Second

// Open builds the article store selected by cfg.
// sqlite3 without a DSN shares mainDB; sqlite3 with a DSN opens that file;
// pgx connects a pgxpool to Postgres and wraps it as *sql.DB.
func Open(ctx context.Context, cfg am.ArticlesConfig, mainDB *sql.DB, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	switch Dialect(cfg.Driver) {
	case "", DialectSQLite:
		if cfg.DSN == "" {
			if mainDB == nil {
				return nil, errors.New("sqlite article store needs a database")
			}
			return NewStore(mainDB, DialectSQLite, log), nil
		}
		conn, err := db.OpenWithMigrations(cfg.DSN, log)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open article database %s", cfg.DSN)
		}
		s := NewStore(conn, DialectSQLite, log)
		s.closer = func() { _ = conn.Close() }
		return s, nil

	case DialectPostgres:
		return openPostgres(ctx, cfg.DSN, log)

	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported article driver %q", cfg.Driver),
			"Set articles.driver to \"sqlite3\" or \"pgx\"")
	}
}

func openPostgres(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Store, error) {
	if dsn == "" {
		return nil, errors.WithHint(errors.New("articles.dsn is required for the pgx driver"),
			"Set NEWSDESK_ARTICLES_DSN or DATABASE_URL")
	}

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Postgres DSN")
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "newsdesk"

	ctx, cancel := context.WithTimeout(ctx, postgresDialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping Postgres")
	}

	conn := stdlib.OpenDBFromPool(pool)
	s := NewStore(conn, DialectPostgres, log.Named("pg"))
	s.closer = func() {
		_ = conn.Close()
		pool.Close()
	}
	log.Infow("Connected article store", "driver", DialectPostgres, "host", pc.ConnConfig.Host)
	return s, nil
}
