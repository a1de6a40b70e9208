package core

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/putto11262002/gymchat/migrations"
)

type SQLiteDBOption struct {
	// mode can be ro | rw | rwc | memory
	Mode string
	// cache can be shared | private
	Cache string
	// JournalMode be DELETE | TRUNCATE | PERSIST | MEMORY | WAL | OFF
	JournalMode string
	// ForeignKeys turns on foreign key enforcement.
	ForeignKeys bool
}

func (config *SQLiteDBOption) DSN(file string) string {
	q := url.Values{}
	if config != nil {
		if config.Mode != "" {
			q.Set("mode", config.Mode)
		}
		if config.Cache != "" {
			q.Set("cache", config.Cache)
		}
		if config.JournalMode != "" {
			q.Set("_journal_mode", config.JournalMode)
		}
		if config.ForeignKeys {
			q.Set("_foreign_keys", "on")
		}
	}
	if len(q) == 0 {
		return "file:" + file
	}
	return "file:" + file + "?" + q.Encode()
}

type SQLiteDB struct {
	*sql.DB
	config *SQLiteDBOption
	file   string
}

func NewSQLiteDB(file string, config *SQLiteDBOption) (*SQLiteDB, error) {
	db := &SQLiteDB{config: config, file: file}

	d, err := sql.Open("sqlite3", config.DSN(file))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if config != nil && config.Mode == "memory" {
		// every connection to a private in-memory database sees its own copy
		d.SetMaxOpenConns(1)
	}

	db.DB = d
	return db, nil
}

// Migrate applies the embedded migrations.
func (db *SQLiteDB) Migrate() error {
	return Migrate(db.DB)
}

func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("SetDialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose.Up: %w", err)
	}
	return nil
}
