package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"tutormarket/db/migrations"
	"tutormarket/internal/lifecycle"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Storage - хранилище поверх sqlx. Запросы пишутся с "?" и переводятся в
// плейсхолдеры драйвера через Rebind.
type Storage struct {
	queries
	db *sqlx.DB
}

// queries содержит общие запросы для соединения и для транзакции.
type queries struct {
	ext    sqlx.ExtContext
	driver string
}

// txStorage - те же запросы внутри транзакции плюс блокировка проекта.
type txStorage struct {
	queries
}

var _ lifecycle.Store = (*Storage)(nil)
var _ lifecycle.Tx = (*txStorage)(nil)

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{queries: queries{ext: db, driver: db.DriverName()}, db: db}
}

// Open подключается к базе, применяет миграции и возвращает хранилище.
func Open(ctx context.Context, driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dbConn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if driver == DriverSQLite {
		// Один писатель: SQLite сериализует транзакции через единственное соединение.
		dbConn.SetMaxOpenConns(1)
	}
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := migrations.Run(dbConn.DB, driver); err != nil {
		dbConn.Close()
		return nil, err
	}
	return NewStorage(dbConn), nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx выполняет fn в транзакции. Ошибка fn откатывает транзакцию.
func (s *Storage) InTx(ctx context.Context, fn func(tx lifecycle.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(&txStorage{queries: queries{ext: tx, driver: s.driver}}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func (q queries) rebind(query string) string {
	return q.ext.Rebind(query)
}

func (q queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.rebind(query), args...)
}

func (q queries) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.rebind(query), args...)
}

func (q queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return q.ext.ExecContext(ctx, q.rebind(query), args...)
}

// insert выполняет INSERT ... RETURNING id.
func (q queries) insert(ctx context.Context, id *int, query string, args ...interface{}) error {
	return q.ext.QueryRowxContext(ctx, q.rebind(query), args...).Scan(id)
}

// forUpdate возвращает блокирующий суффикс SELECT, если диалект его поддерживает.
func (q queries) forUpdate() string {
	if q.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// lookupErr превращает sql.ErrNoRows в lifecycle.ErrNotFound.
func lookupErr(err error, entity string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.NotFound(entity, id)
	}
	return errors.Wrapf(err, "get %s %v", entity, id)
}

func now() time.Time {
	return time.Now().UTC()
}

// sqliteDSN включает внешние ключи и формат времени, который драйвер читает обратно.
func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_pragma=foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "_pragma=busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "_time_format") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
