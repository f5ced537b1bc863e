package queue

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

const inMemoryDB = ":memory:"

var log = logger.GetOrCreate("queue")

// sqliteQueue keeps the outbound lines in a sqlite table so they survive a restart
type sqliteQueue struct {
	mut       sync.Mutex
	db        *sql.DB
	length    int
	maxLength int
	closed    bool
}

// NewSQLiteQueue opens (or creates) the queue database. maxLength <= 0 means unbounded.
func NewSQLiteQueue(dbPath string, maxLength int) (*sqliteQueue, error) {
	if dbPath != inMemoryDB {
		err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS outbound_lines (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		line TEXT    NOT NULL
	);`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	var length int
	err = db.QueryRow("SELECT COUNT(*) FROM outbound_lines").Scan(&length)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to count queued lines: %w", err)
	}

	if length > 0 {
		log.Info("resuming persisted outbound queue", "path", dbPath, "lines", length)
	}

	return &sqliteQueue{
		db:        db,
		length:    length,
		maxLength: maxLength,
	}, nil
}

// Append adds the lines at the tail and returns how many lines were dropped from the head to honor the length limit
func (q *sqliteQueue) Append(lines ...string) (int, error) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.closed {
		return 0, ErrClosed
	}

	tx, err := q.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range lines {
		_, err = tx.Exec("INSERT INTO outbound_lines (line) VALUES (?)", line)
		if err != nil {
			return 0, fmt.Errorf("failed to insert line: %w", err)
		}
	}

	dropped := 0
	newLength := q.length + len(lines)
	if q.maxLength > 0 && newLength > q.maxLength {
		res, errDel := tx.Exec(`
			DELETE FROM outbound_lines
			WHERE id IN (SELECT id FROM outbound_lines ORDER BY id LIMIT ?)
		`, newLength-q.maxLength)
		if errDel != nil {
			return 0, fmt.Errorf("failed to apply overflow policy: %w", errDel)
		}

		affected, _ := res.RowsAffected()
		dropped = int(affected)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit lines: %w", err)
	}

	q.length = newLength - dropped

	return dropped, nil
}

// Peek returns up to max lines from the head without removing them
func (q *sqliteQueue) Peek(max int) (Batch, error) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.closed {
		return Batch{}, ErrClosed
	}
	if max <= 0 {
		return Batch{}, nil
	}

	rows, err := q.db.Query("SELECT id, line FROM outbound_lines ORDER BY id LIMIT ?", max)
	if err != nil {
		return Batch{}, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	batch := Batch{}
	for rows.Next() {
		var id uint64
		var line string
		err = rows.Scan(&id, &line)
		if err != nil {
			return Batch{}, err
		}

		batch.Lines = append(batch.Lines, line)
		batch.LastID = id
	}

	return batch, rows.Err()
}

// Remove drops every line up to and including the provided id
func (q *sqliteQueue) Remove(upToID uint64) error {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.closed {
		return ErrClosed
	}

	res, err := q.db.Exec("DELETE FROM outbound_lines WHERE id <= ?", upToID)
	if err != nil {
		return fmt.Errorf("failed to remove acknowledged lines: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	q.length -= int(affected)

	return nil
}

// Len returns the number of queued lines
func (q *sqliteQueue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()

	return q.length
}

// Close closes the database
func (q *sqliteQueue) Close() error {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	return q.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (q *sqliteQueue) IsInterfaceNil() bool {
	return q == nil
}
