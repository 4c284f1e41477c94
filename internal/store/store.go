// Package store provides the keyed persistence layer: named key->object maps,
// one per (collection, keyField) pair, so the same object set can be looked up
// by several fields.
//
// Every operation on every store, reads included, is serialized through one
// process-wide mutex. Call volume is low (account refreshes and one lookup set
// per webhook) so a single lock keeps a replaced index from ever being seen
// half-written.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/aristath/ledgerbridge/internal/domain"
)

// mu guards all stores in the process, whatever their implementation.
var mu sync.Mutex

// ErrMissingKey marks an object skipped by Put because its key field is absent
var ErrMissingKey = errors.New("key field missing")

// Keyed is implemented by objects that can be indexed by a named field.
// Field reports false when the field is absent or empty.
type Keyed interface {
	Field(name string) (string, bool)
}

// PutResult is the outcome for one object of a Put/Replace batch
type PutResult struct {
	Index int
	Key   string
	Err   error // nil when written
}

// Write is one step of an Apply batch: Objects keyed by KeyField into
// Name(Collection, KeyField), after clearing that store when Replace is set.
type Write struct {
	Collection string
	KeyField   string
	Objects    []Keyed
	Replace    bool
}

// Store is a set of named key->object maps
type Store interface {
	// Put writes each object under the value of its keyField into
	// Name(collection, keyField). Objects without the field are skipped and
	// reported in the results; the batch still succeeds.
	Put(collection, keyField string, objects []Keyed) ([]PutResult, error)

	// Replace is Put after clearing the target store, as one operation
	Replace(collection, keyField string, objects []Keyed) ([]PutResult, error)

	// Apply runs several writes under one hold of the lock, so readers see
	// either none or all of them. Results are returned per write, in order.
	Apply(writes ...Write) ([][]PutResult, error)

	// Get decodes the value stored under key into dst. It returns false, nil
	// when the key is absent.
	Get(name, key string, dst interface{}) (bool, error)

	// Set writes a single entry (last write wins)
	Set(name, key string, value interface{}) error

	// Delete removes a single entry; absent keys yield domain.ErrNotFound
	Delete(name, key string) error

	// Keys lists the keys of a store in ascending order
	Keys(name string) ([]string, error)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Name returns the deterministic store name for a (collection, keyField) pair
func Name(collection, keyField string) string {
	return collection + "__" + keyField
}

func validateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid store name %q", name)
	}
	return nil
}

// Skipped returns the results for objects that were not written
func Skipped(results []PutResult) []PutResult {
	var skipped []PutResult
	for _, r := range results {
		if r.Err != nil {
			skipped = append(skipped, r)
		}
	}
	return skipped
}

// PutAll is Put for a typed slice
func PutAll[T Keyed](s Store, collection, keyField string, items []T) ([]PutResult, error) {
	return s.Put(collection, keyField, asKeyed(items))
}

// ReplaceAll is Replace for a typed slice
func ReplaceAll[T Keyed](s Store, collection, keyField string, items []T) ([]PutResult, error) {
	return s.Replace(collection, keyField, asKeyed(items))
}

// Lookup is Get returning a typed value
func Lookup[T any](s Store, name, key string) (T, bool, error) {
	var v T
	found, err := s.Get(name, key, &v)
	return v, found, err
}

func asKeyed[T Keyed](items []T) []Keyed {
	out := make([]Keyed, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// entry is an encoded object ready to write
type entry struct {
	key   string
	value []byte
}

// prepared is a validated, encoded Write
type prepared struct {
	name    string
	replace bool
	entries []entry
	results []PutResult
}

// prepareAll validates names and encodes every write before any lock is taken
func prepareAll(writes []Write) ([]prepared, error) {
	out := make([]prepared, len(writes))
	for i, w := range writes {
		name := Name(w.Collection, w.KeyField)
		if err := validateName(name); err != nil {
			return nil, err
		}
		entries, results := prepare(w.KeyField, w.Objects)
		out[i] = prepared{name: name, replace: w.Replace, entries: entries, results: results}
	}
	return out, nil
}

func resultsOf(batch []prepared) [][]PutResult {
	out := make([][]PutResult, len(batch))
	for i, p := range batch {
		out[i] = p.results
	}
	return out
}

func single(collection, keyField string, objects []Keyed, replace bool) Write {
	return Write{Collection: collection, KeyField: keyField, Objects: objects, Replace: replace}
}

// prepare derives keys and encodes values for a batch
func prepare(keyField string, objects []Keyed) ([]entry, []PutResult) {
	entries := make([]entry, 0, len(objects))
	results := make([]PutResult, len(objects))

	for i, obj := range objects {
		results[i].Index = i

		key, ok := obj.Field(keyField)
		if !ok {
			results[i].Err = fmt.Errorf("%w: %q", ErrMissingKey, keyField)
			continue
		}
		results[i].Key = key

		data, err := encode(obj)
		if err != nil {
			results[i].Err = err
			continue
		}
		entries = append(entries, entry{key: key, value: data})
	}

	return entries, results
}

func notFound(name, key string) error {
	return fmt.Errorf("%w: key %q in store %s", domain.ErrNotFound, key, name)
}

func storageErr(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, op, name, err)
}
