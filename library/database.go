package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

// Database is a Backend storing every collection in one SQLite table, one row per record.
type Database struct {
	db *sql.DB

	insertRecordStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One interactive session, one connection.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.insertRecordStmt != nil {
		d.insertRecordStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
            name TEXT PRIMARY KEY
        );`,
		`CREATE TABLE IF NOT EXISTS records (
            collection TEXT NOT NULL REFERENCES collections(name),
            position INTEGER NOT NULL,
            body TEXT NOT NULL,
            PRIMARY KEY (collection, position)
        );`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.insertRecordStmt, err = d.db.Prepare(`INSERT INTO records(collection,position,body) VALUES(?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

// Load returns the records of collection ordered by their saved position.
func (d *Database) Load(collection string) ([]jsoniter.RawMessage, error) {
	var exists bool
	if err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM collections WHERE name=?)`, collection).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCollectionMissing
	}

	rows, err := d.db.Query(`SELECT body FROM records WHERE collection=? ORDER BY position`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []jsoniter.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		if !jsoniter.Valid([]byte(body)) {
			return nil, fmt.Errorf("%w: %s row %d", ErrCorrupt, collection, len(records))
		}
		records = append(records, jsoniter.RawMessage(body))
	}
	return records, rows.Err()
}

// Save replaces the whole collection in one transaction.
func (d *Database) Save(collection string, records []jsoniter.RawMessage) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO collections(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, collection); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE collection=?`, collection); err != nil {
		return err
	}

	insert := tx.Stmt(d.insertRecordStmt)
	for i, rec := range records {
		if _, err := insert.Exec(collection, i, string(rec)); err != nil {
			return fmt.Errorf("insert %s record %d: %w", collection, i, err)
		}
	}
	return tx.Commit()
}

// RecordCount returns how many records collection holds.
func (d *Database) RecordCount(collection string) (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM records WHERE collection=?`, collection).Scan(&n)
	return n, err
}
