// Package vault implements the persistent fingerprint → artifact reference
// cache. The on-disk layout is a single flat JSON object whose values are a
// string (track entry) or an array of strings (album/playlist entry). A
// shadow backup copy is written before every overwrite and is used as a
// fallback source when the primary file is missing or structurally invalid.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// DefaultMaxEntries bounds the number of fingerprints kept before the
// oldest-inserted entries are evicted.
const DefaultMaxEntries = 1000

// Value is one vault entry: a single artifact reference or an ordered list
// of references.
type Value struct {
	Single string
	List   []string
	IsList bool
}

// Ref wraps a single artifact reference as a Value.
func Ref(s string) Value {
	return Value{Single: s}
}

// Refs wraps an ordered reference list as a Value.
func Refs(l []string) Value {
	return Value{List: l, IsList: true}
}

// AsList returns the references as a slice regardless of shape.
func (v Value) AsList() []string {
	if v.IsList {
		return v.List
	}
	return []string{v.Single}
}

// validate enforces the structural contract: a non-empty string, or a
// non-empty list of non-empty strings.
func (v Value) validate() error {
	if v.IsList {
		if len(v.List) == 0 {
			return fmt.Errorf("%w: empty reference list", model.ErrVaultWriteRejected)
		}
		for i, ref := range v.List {
			if ref == "" {
				return fmt.Errorf("%w: empty reference at index %d", model.ErrVaultWriteRejected, i)
			}
		}
		return nil
	}
	if v.Single == "" {
		return fmt.Errorf("%w: empty reference", model.ErrVaultWriteRejected)
	}
	return nil
}

// entry pairs a fingerprint with its value; the slice order is insertion
// order, which is also the eviction order.
type entry struct {
	key string
	val Value
}

// Store is the file-backed vault. Every read re-loads from disk and every
// write runs a full load-merge-save cycle under the store mutex, so
// concurrent writes to distinct fingerprints cannot clobber each other.
// Same-fingerprint pipelines serialize through Lock.
type Store struct {
	path       string
	backupPath string
	maxEntries int

	mu sync.Mutex // serializes the load-merge-save cycle

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New creates a store over the given primary and backup files. Neither file
// needs to exist yet.
func New(path, backupPath string) *Store {
	return &Store{
		path:       path,
		backupPath: backupPath,
		maxEntries: DefaultMaxEntries,
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

// SetMaxEntries overrides the eviction bound. Values below 1 are ignored.
func (s *Store) SetMaxEntries(n int) {
	if n >= 1 {
		s.maxEntries = n
	}
}

// Lock acquires the per-fingerprint mutex, creating it on demand, and
// returns the unlock function. Callers hold it across the whole
// check-fetch-publish-write cycle for a fingerprint.
func (s *Store) Lock(fingerprint string) func() {
	s.lockMu.Lock()
	m, ok := s.keyLocks[fingerprint]
	if !ok {
		m = &sync.Mutex{}
		s.keyLocks[fingerprint] = m
	}
	s.lockMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Get returns the entry for a fingerprint. Read failures of any kind
// degrade to "absent"; they are never propagated.
func (s *Store) Get(fingerprint string) (Value, bool) {
	s.mu.Lock()
	entries := s.load()
	s.mu.Unlock()

	for _, e := range entries {
		if e.key == fingerprint {
			return e.val, true
		}
	}
	return Value{}, false
}

// Put inserts or overwrites a fingerprint. The value is validated first; a
// backup snapshot of the pre-update state is written before the primary file
// is replaced. Oldest-inserted entries are evicted beyond the bound. On any
// error the previous on-disk state is left intact.
func (s *Store) Put(fingerprint string, v Value) error {
	if err := v.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()

	// Snapshot the current state before touching the primary file.
	if err := s.persist(s.backupPath, entries); err != nil {
		return fmt.Errorf("vault backup write failed: %w", err)
	}

	// Overwriting keeps the original insertion position.
	replaced := false
	for i := range entries {
		if entries[i].key == fingerprint {
			entries[i].val = v
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry{key: fingerprint, val: v})
	}

	if evicted := len(entries) - s.maxEntries; evicted > 0 {
		for _, e := range entries[:evicted] {
			logger.Info("vault entry evicted", logger.String("fingerprint", e.key))
		}
		entries = entries[evicted:]
	}

	if err := s.persist(s.path, entries); err != nil {
		return fmt.Errorf("vault write failed: %w", err)
	}
	return nil
}

// Delete removes a fingerprint if present. Missing keys are not an error.
func (s *Store) Delete(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	kept := make([]entry, 0, len(entries))
	found := false
	for _, e := range entries {
		if e.key == fingerprint {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return nil
	}

	if err := s.persist(s.backupPath, entries); err != nil {
		return fmt.Errorf("vault backup write failed: %w", err)
	}
	if err := s.persist(s.path, kept); err != nil {
		return fmt.Errorf("vault write failed: %w", err)
	}
	return nil
}

// Len returns the number of cached fingerprints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load())
}

// Fingerprints returns the cached keys in insertion order.
func (s *Store) Fingerprints() []string {
	s.mu.Lock()
	entries := s.load()
	s.mu.Unlock()

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

// load reads the primary file, falling back to the backup when the primary
// is missing or fails structural validation, and to an empty mapping when
// both are unusable. Callers hold s.mu.
func (s *Store) load() []entry {
	entries, err := loadFile(s.path)
	if err == nil {
		return entries
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("vault primary unreadable, trying backup",
			logger.String("path", s.path),
			logger.ErrorField(err))
	}

	entries, berr := loadFile(s.backupPath)
	if berr == nil {
		return entries
	}
	if !errors.Is(berr, os.ErrNotExist) {
		logger.Warn("vault backup unreadable, starting empty",
			logger.String("path", s.backupPath),
			logger.ErrorField(berr))
	}
	return nil
}

func loadFile(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeOrdered(f)
}

// decodeOrdered reads the flat JSON object token by token so key order (and
// therefore eviction order) survives the round trip. Any value that is not a
// string or an array of strings fails the whole document.
func decodeOrdered(r io.Reader) ([]entry, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading vault document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("vault document is not a JSON object")
	}

	var entries []entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading vault key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("vault key is not a string")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("reading vault value for %q: %w", key, err)
		}

		val, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("vault value for %q: %w", key, err)
		}
		entries = append(entries, entry{key: key, val: val})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading vault document end: %w", err)
	}
	return entries, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return Ref(single), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return Refs(list), nil
	}
	return Value{}, fmt.Errorf("must be a string or a list of strings")
}

// persist writes entries to path atomically: marshal in insertion order to a
// sibling temp file, then rename over the target.
func (s *Store) persist(path string, entries []entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating vault directory: %w", err)
		}
	}

	data, err := encodeOrdered(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp vault file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp vault file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp vault file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing vault file: %w", err)
	}
	return nil
}

// encodeOrdered marshals entries as an indented JSON object in insertion
// order. encoding/json map marshalling would sort the keys, which would
// destroy eviction order.
func encodeOrdered(entries []entry) ([]byte, error) {
	var buf []byte
	buf = append(buf, '{')
	for i, e := range entries {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '\n', ' ', ' ', ' ', ' ')

		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, fmt.Errorf("marshalling vault key %q: %w", e.key, err)
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':', ' ')

		var valJSON []byte
		if e.val.IsList {
			valJSON, err = json.Marshal(e.val.List)
		} else {
			valJSON, err = json.Marshal(e.val.Single)
		}
		if err != nil {
			return nil, fmt.Errorf("marshalling vault value for %q: %w", e.key, err)
		}
		buf = append(buf, valJSON...)
	}
	if len(entries) > 0 {
		buf = append(buf, '\n')
	}
	buf = append(buf, '}', '\n')
	return buf, nil
}
