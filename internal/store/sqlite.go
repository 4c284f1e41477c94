package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/ledgerbridge/internal/database"
	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/rs/zerolog"
)

const entriesSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore keeps one sqlite file per store name under a directory.
// Each call opens the file, uses it and closes it before returning.
type SQLiteStore struct {
	dir string
	log zerolog.Logger
}

// NewSQLiteStore creates a file-backed store rooted at dir. The directory is
// created on first use.
func NewSQLiteStore(dir string, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		dir: dir,
		log: log.With().Str("component", "store").Logger(),
	}
}

// Dir returns the directory holding the store files
func (s *SQLiteStore) Dir() string {
	return s.dir
}

func (s *SQLiteStore) path(name string) string {
	return filepath.Join(s.dir, name+".db")
}

// withDB opens the named store, applies the schema and runs fn. Callers hold mu.
// Errors from fn are wrapped as storage errors, except not-found conditions.
func (s *SQLiteStore) withDB(op, name string, fn func(*database.DB) error) error {
	if err := validateName(name); err != nil {
		return err
	}

	db, err := database.New(database.Config{Path: s.path(name), Name: name})
	if err != nil {
		return storageErr(op, name, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			s.log.Warn().Err(err).Str("store", name).Msg("Failed to close store")
		}
	}()

	if err := db.Migrate(context.Background(), entriesSchema); err != nil {
		return storageErr(op, name, err)
	}

	if err := fn(db); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return storageErr(op, name, err)
	}
	return nil
}

// Put implements Store
func (s *SQLiteStore) Put(collection, keyField string, objects []Keyed) ([]PutResult, error) {
	results, err := s.Apply(single(collection, keyField, objects, false))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Replace implements Store
func (s *SQLiteStore) Replace(collection, keyField string, objects []Keyed) ([]PutResult, error) {
	results, err := s.Apply(single(collection, keyField, objects, true))
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Apply implements Store. Each write is one transaction on its store file;
// a failure stops the batch and earlier writes of it are not rolled back.
func (s *SQLiteStore) Apply(writes ...Write) ([][]PutResult, error) {
	batch, err := prepareAll(writes)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	for i, p := range batch {
		if err := s.write(p); err != nil {
			return nil, err
		}

		s.log.Debug().
			Str("store", p.name).
			Int("written", len(p.entries)).
			Int("skipped", len(writes[i].Objects)-len(p.entries)).
			Bool("replace", p.replace).
			Msg("Batch written")
	}

	return resultsOf(batch), nil
}

// write applies one prepared write. Callers hold mu.
func (s *SQLiteStore) write(p prepared) error {
	return s.withDB("put", p.name, func(db *database.DB) error {
		return database.WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
			if p.replace {
				if _, err := tx.Exec("DELETE FROM entries"); err != nil {
					return err
				}
			}

			stmt, err := tx.Prepare("INSERT OR REPLACE INTO entries (key, value, updated_at) VALUES (?, ?, ?)")
			if err != nil {
				return err
			}
			defer stmt.Close()

			now := time.Now().Unix()
			for _, e := range p.entries {
				if _, err := stmt.Exec(e.key, e.value, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Get implements Store
func (s *SQLiteStore) Get(name, key string, dst interface{}) (bool, error) {
	var data []byte

	mu.Lock()
	err := s.withDB("get", name, func(db *database.DB) error {
		return db.Conn().QueryRow("SELECT value FROM entries WHERE key = ?", key).Scan(&data)
	})
	mu.Unlock()

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := decode(data, dst); err != nil {
		return false, storageErr("get", name, err)
	}
	return true, nil
}

// Set implements Store
func (s *SQLiteStore) Set(name, key string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	return s.withDB("set", name, func(db *database.DB) error {
		_, err := db.Conn().Exec(
			"INSERT OR REPLACE INTO entries (key, value, updated_at) VALUES (?, ?, ?)",
			key, data, time.Now().Unix(),
		)
		return err
	})
}

// Delete implements Store
func (s *SQLiteStore) Delete(name, key string) error {
	mu.Lock()
	defer mu.Unlock()

	return s.withDB("delete", name, func(db *database.DB) error {
		res, err := db.Conn().Exec("DELETE FROM entries WHERE key = ?", key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(name, key)
		}
		return nil
	})
}

// Keys implements Store
func (s *SQLiteStore) Keys(name string) ([]string, error) {
	var keys []string

	mu.Lock()
	defer mu.Unlock()

	err := s.withDB("keys", name, func(db *database.DB) error {
		rows, err := db.Conn().Query("SELECT key FROM entries ORDER BY key")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

// Names lists the stores that exist on disk
func (s *SQLiteStore) Names() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.db"))
	if err != nil {
		return nil, storageErr("list", s.dir, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".db"))
	}
	sort.Strings(names)
	return names, nil
}

// Snapshot writes a consistent copy of every store file into destDir and
// returns the written paths. Writers are blocked for the duration.
func (s *SQLiteStore) Snapshot(ctx context.Context, destDir string) ([]string, error) {
	mu.Lock()
	defer mu.Unlock()

	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, storageErr("snapshot", destDir, err)
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		dest := filepath.Join(destDir, name+".db")
		err := s.withDB("snapshot", name, func(db *database.DB) error {
			return db.VacuumInto(ctx, dest)
		})
		if err != nil {
			return paths, fmt.Errorf("snapshot %s: %w", name, err)
		}
		paths = append(paths, dest)
	}

	return paths, nil
}

// Check runs an integrity check on every store file. It stops at the first
// corrupt store.
func (s *SQLiteStore) Check(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	names, err := s.Names()
	if err != nil {
		return err
	}

	for _, name := range names {
		err := s.withDB("check", name, func(db *database.DB) error {
			return db.HealthCheck(ctx)
		})
		if err != nil {
			return err
		}
		s.log.Debug().Str("store", name).Msg("Store integrity OK")
	}
	return nil
}
