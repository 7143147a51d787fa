// Package storage is the embedded record store backing the study core: a
// set of named collections of JSON records over a single SQLite file,
// with secondary indexes derived from record fields and atomic
// multi-record transactions. One logical writer is assumed; the store
// does not coordinate between processes.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Store wraps the SQLite connection and the collection descriptors.
type Store struct {
	db          *sql.DB
	collections map[string]Collection
	logger      *slog.Logger
}

// Record is one stored entry: its unique key and the raw JSON document.
type Record struct {
	Key  string
	Data []byte
}

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every operation runs the same way inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the database at path and brings the schema up
// to date, applying any pending migration steps in order. A failure to
// open or migrate is reported as ErrUnavailable and is fatal to the core.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, path, err)
	}

	s := &Store{
		db:          db,
		collections: collectionsByName(),
		logger:      logger.With(slog.String("component", "storage")),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or overwrites the record under key (last write wins).
func (s *Store) Put(ctx context.Context, collection, key string, record any) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	return putRecord(ctx, s.db, col, key, record)
}

// Get loads the record under key into dest. It returns false, nil when
// the key is absent; absence is not an error at this layer.
func (s *Store) Get(ctx context.Context, collection, key string, dest any) (bool, error) {
	col, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	return getRecord(ctx, s.db, col, key, dest)
}

// Delete removes the record under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	return deleteRecord(ctx, s.db, col, key)
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return countRecords(ctx, s.db, col)
}

// Scan produces every record in the collection, lazily, in insertion
// order. The order is stable within one scan but is otherwise an
// implementation detail; callers needing a particular order must sort.
func (s *Store) Scan(ctx context.Context, collection string) iter.Seq2[Record, error] {
	col, err := s.collection(collection)
	if err != nil {
		return failedScan(err)
	}
	return scanRows(ctx, s.db, fmt.Sprintf(`SELECT key, record FROM %q ORDER BY rowid`, col.Name))
}

// ScanIndex produces the records whose indexed field equals value,
// lazily, in insertion order.
func (s *Store) ScanIndex(ctx context.Context, collection, index, value string) iter.Seq2[Record, error] {
	col, idx, err := s.index(collection, index)
	if err != nil {
		return failedScan(err)
	}
	return scanRows(ctx, s.db,
		fmt.Sprintf(`SELECT key, record FROM %q WHERE %q = ? ORDER BY rowid`, col.Name, idx.Name), value)
}

// ScanIndexTo produces the records whose indexed field is at most max
// (string comparison over the indexed value), lazily, in insertion order.
func (s *Store) ScanIndexTo(ctx context.Context, collection, index, max string) iter.Seq2[Record, error] {
	col, idx, err := s.index(collection, index)
	if err != nil {
		return failedScan(err)
	}
	return scanRows(ctx, s.db,
		fmt.Sprintf(`SELECT key, record FROM %q WHERE %q <= ? ORDER BY rowid`, col.Name, idx.Name), max)
}

// Tx exposes store operations bound to one transaction. Writes become
// visible atomically on commit; a failed transaction leaves no writes
// observable.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// Put inserts or overwrites the record under key within the transaction.
func (t *Tx) Put(ctx context.Context, collection, key string, record any) error {
	col, err := t.store.collection(collection)
	if err != nil {
		return err
	}
	return putRecord(ctx, t.tx, col, key, record)
}

// Get loads the record under key, observing the transaction's own writes.
func (t *Tx) Get(ctx context.Context, collection, key string, dest any) (bool, error) {
	col, err := t.store.collection(collection)
	if err != nil {
		return false, err
	}
	return getRecord(ctx, t.tx, col, key, dest)
}

// Delete removes the record under key within the transaction.
func (t *Tx) Delete(ctx context.Context, collection, key string) error {
	col, err := t.store.collection(collection)
	if err != nil {
		return err
	}
	return deleteRecord(ctx, t.tx, col, key)
}

// Scan produces every record in the collection as seen by the transaction.
func (t *Tx) Scan(ctx context.Context, collection string) iter.Seq2[Record, error] {
	col, err := t.store.collection(collection)
	if err != nil {
		return failedScan(err)
	}
	return scanRows(ctx, t.tx, fmt.Sprintf(`SELECT key, record FROM %q ORDER BY rowid`, col.Name))
}

// ScanIndex produces the matching records as seen by the transaction.
func (t *Tx) ScanIndex(ctx context.Context, collection, index, value string) iter.Seq2[Record, error] {
	col, idx, err := t.store.index(collection, index)
	if err != nil {
		return failedScan(err)
	}
	return scanRows(ctx, t.tx,
		fmt.Sprintf(`SELECT key, record FROM %q WHERE %q = ? ORDER BY rowid`, col.Name, idx.Name), value)
}

// RunInTransaction executes fn within one transaction spanning all
// collections. If fn returns an error the transaction is rolled back and
// the error is reported as ErrTxAborted wrapping the cause; a panic also
// rolls back before propagating.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrUnavailable, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback after panic failed", slog.Any("panic", p), slog.Any("error", rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed",
				slog.Any("rollback_error", rbErr), slog.Any("cause", err))
		}
		return fmt.Errorf("%w: %w", ErrTxAborted, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTxAborted, err)
	}
	return nil
}

func (s *Store) collection(name string) (Collection, error) {
	col, ok := s.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("unknown collection %q", name)
	}
	return col, nil
}

func (s *Store) index(collection, index string) (Collection, Index, error) {
	col, err := s.collection(collection)
	if err != nil {
		return Collection{}, Index{}, err
	}
	for _, idx := range col.Indexes {
		if idx.Name == index {
			return col, idx, nil
		}
	}
	return Collection{}, Index{}, fmt.Errorf("collection %q has no index %q", collection, index)
}

func putRecord(ctx context.Context, q dbtx, col Collection, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("put %s/%s: encode record: %w", col.Name, key, err)
	}
	return putRaw(ctx, q, col, key, data)
}

// putRaw writes already-marshalled record bytes, deriving the collection's
// index values from the document.
func putRaw(ctx context.Context, q dbtx, col Collection, key string, data []byte) error {
	idxValues, err := indexValues(col, data)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", col.Name, key, err)
	}

	columns := []string{"key", "record"}
	updates := []string{"record = excluded.record"}
	args := []any{key, string(data)}
	for i, idx := range col.Indexes {
		columns = append(columns, fmt.Sprintf("%q", idx.Name))
		updates = append(updates, fmt.Sprintf("%q = excluded.%q", idx.Name, idx.Name))
		args = append(args, idxValues[i])
	}
	query := fmt.Sprintf(
		`INSERT INTO %q (%s) VALUES (%s) ON CONFLICT(key) DO UPDATE SET %s`,
		col.Name,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
		strings.Join(updates, ", "),
	)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s/%s: %w", col.Name, key, err)
	}
	return nil
}

func getRecord(ctx context.Context, q dbtx, col Collection, key string, dest any) (bool, error) {
	var data []byte
	row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT record FROM %q WHERE key = ?`, col.Name), key)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("get %s/%s: %w", col.Name, key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("get %s/%s: decode record: %w", col.Name, key, err)
	}
	return true, nil
}

func deleteRecord(ctx context.Context, q dbtx, col Collection, key string) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, col.Name), key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", col.Name, key, err)
	}
	return nil
}

func countRecords(ctx context.Context, q dbtx, col Collection) (int, error) {
	var n int
	row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, col.Name))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", col.Name, err)
	}
	return n, nil
}

// indexValues extracts the collection's indexed fields from the
// marshalled record. Only string-valued fields are indexable; absent or
// empty values index as NULL.
func indexValues(col Collection, data []byte) ([]any, error) {
	if len(col.Indexes) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode record for indexing: %w", err)
	}
	values := make([]any, len(col.Indexes))
	for i, idx := range col.Indexes {
		raw, ok := fields[idx.Field]
		if !ok || raw == nil {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("index %s: field %q is not a string", idx.Name, idx.Field)
		}
		if str != "" {
			values[i] = str
		}
	}
	return values, nil
}

// scanRows lazily yields key/record pairs for the query. The underlying
// cursor is closed when the sequence is exhausted or abandoned.
func scanRows(ctx context.Context, q dbtx, query string, args ...any) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Record{}, fmt.Errorf("scan: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var rec Record
			if err := rows.Scan(&rec.Key, &rec.Data); err != nil {
				yield(Record{}, fmt.Errorf("scan row: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("scan: %w", err))
		}
	}
}

func failedScan(err error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		yield(Record{}, err)
	}
}
