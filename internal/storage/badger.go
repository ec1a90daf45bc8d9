package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bdougie/mira/internal/models"
)

const resultPrefix = "result:"

// BadgerOptions configures the local result history.
type BadgerOptions struct {
	// Dir is required unless InMemory is set.
	Dir      string
	InMemory bool
	Logger   *slog.Logger
}

// BadgerStorage keeps every result in an embedded Badger database, encoded
// with msgpack and keyed by session and sequence number.
type BadgerStorage struct {
	db      *badger.DB
	session string
}

var (
	_ Storage = (*BadgerStorage)(nil)
	_ Lister  = (*BadgerStorage)(nil)
)

// NewBadgerStorage opens the history database. session may be empty for
// read-only use.
func NewBadgerStorage(opts BadgerOptions, session string) (*BadgerStorage, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("storage: badger dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger: logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStorage{db: db, session: session}, nil
}

func resultKey(session, analyzer string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", resultPrefix, session, seq, analyzer))
}

func sessionPrefix(session string) []byte {
	return []byte(resultPrefix + session + ":")
}

func (b *BadgerStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	if result.Session == "" {
		result.Session = b.session
	}
	val, err := msgpack.Marshal(&result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(result.Session, result.Analyzer, result.Seq), val)
	})
}

// Flush is a no-op; writes are committed per result.
func (b *BadgerStorage) Flush() error { return nil }

func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

// List returns up to limit results of session, highest sequence first.
func (b *BadgerStorage) List(ctx context.Context, session string, limit int) ([]models.AnalysisResult, error) {
	prefix := sessionPrefix(session)
	var out []models.AnalysisResult
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Reverse iteration starts at the last key <= seek.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var r models.AnalysisResult
			if err := msgpack.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("decode result %q: %w", it.Item().Key(), err)
			}
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

// Sessions lists the session IDs present in the history.
func (b *BadgerStorage) Sessions(ctx context.Context) ([]string, error) {
	prefix := []byte(resultPrefix)
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key()[len(prefix):])
			session := key
			for i := 0; i < len(key); i++ {
				if key[i] == ':' {
					session = key[:i]
					break
				}
			}
			if session != last {
				out = append(out, session)
				last = session
			}
		}
		return nil
	})
	return out, err
}

// badgerLogger routes badger's log output through slog, dropping debug and
// info chatter.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf("[badger] "+f, v...))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf("[badger] "+f, v...))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
