package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"imgpub/internal/domain/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

const linkColumns = "code, target, owner_id, owner_label, created_at"

// StorageDB - PostgreSQL storage.
type StorageDB struct {
	DBConn *sql.DB
	log    *zap.SugaredLogger
}

// NewStorageDB opens a pgx connection pool for dsn.
func NewStorageDB(dsn string, log *zap.SugaredLogger) (*StorageDB, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dbConn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable open database: %w", err)
	}
	return &StorageDB{DBConn: dbConn, log: log}, nil
}

type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) { l.log.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.log.Fatalf(format, v...) }

// UpDBMigrations applies the embedded goose migrations.
func UpDBMigrations(ctx context.Context, db *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *StorageDB) conn() (*sql.DB, error) {
	if s == nil || s.DBConn == nil {
		return nil, ErrNotConnected
	}
	return s.DBConn, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (models.ShortLink, error) {
	var link models.ShortLink
	err := row.Scan(&link.Code, &link.Target, &link.OwnerID, &link.OwnerLabel, &link.CreatedAt)
	return link, err
}

func scanLinks(rows *sql.Rows) ([]models.ShortLink, error) {
	defer rows.Close()

	links := make([]models.ShortLink, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// BeginTx starts a database transaction.
func (s *StorageDB) BeginTx(ctx context.Context) (LinkTx, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &dbTx{tx: tx}, nil
}

// FindLink returns the link stored under code.
func (s *StorageDB) FindLink(ctx context.Context, code string) (models.ShortLink, error) {
	db, err := s.conn()
	if err != nil {
		return models.ShortLink{}, err
	}
	link, err := scanLink(db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM short_links WHERE code = $1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShortLink{}, ErrNotFound
	}
	if err != nil {
		return models.ShortLink{}, fmt.Errorf("find link %s: %w", code, err)
	}
	return link, nil
}

// ListLinksByOwner returns one page of the owner's links, newest first.
func (s *StorageDB) ListLinksByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.ShortLink, int, error) {
	db, err := s.conn()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM short_links WHERE owner_id = $1", ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count owner links: %w", err)
	}

	pageLimit := sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
	rows, err := db.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM short_links WHERE owner_id = $1 ORDER BY created_at DESC, code LIMIT $2 OFFSET $3",
		ownerID, pageLimit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list owner links: %w", err)
	}
	links, err := scanLinks(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan owner links: %w", err)
	}
	return links, total, nil
}

// DeleteLink removes a link; an empty ownerID matches any owner.
func (s *StorageDB) DeleteLink(ctx context.Context, code, ownerID string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}

	var res sql.Result
	if ownerID == "" {
		res, err = db.ExecContext(ctx, "DELETE FROM short_links WHERE code = $1", code)
	} else {
		res, err = db.ExecContext(ctx, "DELETE FROM short_links WHERE code = $1 AND owner_id = $2", code, ownerID)
	}
	if err != nil {
		return false, fmt.Errorf("delete link %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AllLinks returns every link ordered by code.
func (s *StorageDB) AllLinks(ctx context.Context) ([]models.ShortLink, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT "+linkColumns+" FROM short_links ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return scanLinks(rows)
}

// DeleteAllLinks removes every link.
func (s *StorageDB) DeleteAllLinks(ctx context.Context) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM short_links")
	if err != nil {
		return 0, fmt.Errorf("delete links: %w", err)
	}
	return res.RowsAffected()
}

// FindConfig returns the setting stored under key.
func (s *StorageDB) FindConfig(ctx context.Context, key string) (models.GatewayConfig, error) {
	db, err := s.conn()
	if err != nil {
		return models.GatewayConfig{}, err
	}
	var cfg models.GatewayConfig
	err = db.QueryRowContext(ctx,
		"SELECT key, value, updated_at FROM gateway_config WHERE key = $1", key).
		Scan(&cfg.Key, &cfg.Value, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GatewayConfig{}, ErrNotFound
	}
	if err != nil {
		return models.GatewayConfig{}, fmt.Errorf("find config %s: %w", key, err)
	}
	return cfg, nil
}

// UpsertConfig stores value under key.
func (s *StorageDB) UpsertConfig(ctx context.Context, key, value string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO gateway_config (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection to the database.
func (s *StorageDB) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *StorageDB) Close() error {
	db, err := s.conn()
	if err != nil {
		return nil
	}
	return db.Close()
}

type dbTx struct {
	tx *sql.Tx
}

func (t *dbTx) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM short_links WHERE code = $1)", code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code %s: %w", code, err)
	}
	return exists, nil
}

func (t *dbTx) InsertLink(ctx context.Context, link models.ShortLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO short_links ("+linkColumns+") VALUES ($1, $2, $3, $4, $5) ON CONFLICT (code) DO NOTHING",
		link.Code, link.Target, link.OwnerID, link.OwnerLabel, link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert link %s: %w", link.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *dbTx) LinksWithTargetContaining(ctx context.Context, substr string) ([]models.ShortLink, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+linkColumns+" FROM short_links WHERE strpos(lower(target), lower($1)) > 0 ORDER BY code FOR UPDATE", substr)
	if err != nil {
		return nil, fmt.Errorf("select stale links: %w", err)
	}
	return scanLinks(rows)
}

func (t *dbTx) UpdateTarget(ctx context.Context, code, target string) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE short_links SET target = $2 WHERE code = $1", code, target)
	if err != nil {
		return fmt.Errorf("update link %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *dbTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *dbTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}
