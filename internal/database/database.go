package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound é retornado quando o registro não existe
var ErrNotFound = errors.New("registro não encontrado")

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sqlx.DB
}

// New abre o banco SQLite e cria as tabelas necessárias
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=on&_busy_timeout=5000"

	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serializa escritas; uma conexão evita "database is locked"
	// e mantém bancos :memory: consistentes
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("erro ao criar tabelas: %w", err)
	}
	return db, nil
}

// Wrap usa uma conexão já aberta, sem criar tabelas
func Wrap(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS competitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	platform TEXT NOT NULL DEFAULT 'custom',
	status TEXT NOT NULL DEFAULT 'active',
	last_scanned_at DATETIME,
	product_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS competitor_products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	competitor_id INTEGER NOT NULL REFERENCES competitors(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	current_price REAL,
	currency TEXT NOT NULL DEFAULT '',
	first_seen_at DATETIME NOT NULL,
	last_seen_at DATETIME NOT NULL,
	price_history TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'active',
	UNIQUE (competitor_id, url)
);

CREATE INDEX IF NOT EXISTS idx_competitor_products_status
	ON competitor_products (competitor_id, status);

CREATE TABLE IF NOT EXISTS scan_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	competitor_id INTEGER NOT NULL REFERENCES competitors(id) ON DELETE CASCADE,
	new_count INTEGER NOT NULL DEFAULT 0,
	removed_count INTEGER NOT NULL DEFAULT 0,
	price_changed_count INTEGER NOT NULL DEFAULT 0,
	title_changed_count INTEGER NOT NULL DEFAULT 0,
	scanned_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scan_results_competitor
	ON scan_results (competitor_id, scanned_at);
`

// init cria as tabelas necessárias
func (db *DB) init() error {
	_, err := db.conn.Exec(schema)
	return err
}

// Tx é uma transação de escrita do scan
type Tx struct {
	tx *sqlx.Tx
}

// WithTx executa fn dentro de uma transação. Se fn retornar erro, nada é gravado.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("erro no rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("erro ao confirmar transação: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
