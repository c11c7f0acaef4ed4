// Package classstore keeps parsed class artifacts in a SQLite database and
// serves them to the interpreter as a class loader.
package classstore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/jolt/pkg/classfile"
)

// ErrNotFound indicates the requested class is not in the store.
var ErrNotFound = errors.New("class not in store")

// ArtifactExt is the file extension ImportDir picks up.
const ArtifactExt = ".cbor"

var log = commonlog.GetLogger("jolt.classstore")

// Store is a SQLite table of CBOR-encoded classes keyed by internal name.
// Each row carries the sha256 digest of its bytes.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS classes (
		name   TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		data   BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Digest computes the content digest of encoded class bytes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put encodes and stores a class, replacing any previous version, and
// returns its digest.
func (s *Store) Put(c *classfile.Class) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	data, err := classfile.Marshal(c)
	if err != nil {
		return "", err
	}
	return s.putBytes(c.Name, data)
}

func (s *Store) putBytes(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := Digest(data)
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO classes (name, digest, data) VALUES (?, ?, ?)",
		name, digest, data,
	)
	if err != nil {
		return "", fmt.Errorf("saving class %s: %w", name, err)
	}
	log.Debugf("stored %s (%s)", name, digest[:12])
	return digest, nil
}

// Get loads and decodes the class with the given internal name.
func (s *Store) Get(name string) (*classfile.Class, error) {
	var data []byte
	var digest string
	err := s.db.QueryRow("SELECT digest, data FROM classes WHERE name = ?", name).Scan(&digest, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying class %s: %w", name, err)
	}
	if got := Digest(data); got != digest {
		return nil, fmt.Errorf("class %s: digest mismatch: stored %s, computed %s", name, digest, got)
	}
	return classfile.Unmarshal(data)
}

// LoadClass implements vm.ClassLoader.
func (s *Store) LoadClass(name string) (*classfile.Class, error) {
	return s.Get(name)
}

// Digest returns the stored digest of a class.
func (s *Store) Digest(name string) (string, error) {
	var digest string
	err := s.db.QueryRow("SELECT digest FROM classes WHERE name = ?", name).Scan(&digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("querying class %s: %w", name, err)
	}
	return digest, nil
}

// Names returns every stored class name, sorted.
func (s *Store) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM classes")
	if err != nil {
		return nil, fmt.Errorf("listing classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a class. Deleting a missing class is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM classes WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting class %s: %w", name, err)
	}
	return nil
}

// ImportDir stores every artifact file under dir and returns the imported
// class names. Files are decoded before storing, so a malformed artifact
// aborts the import.
func (s *Store) ImportDir(dir string) ([]string, error) {
	var imported []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ArtifactExt) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		c, err := classfile.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, err := s.Put(c); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		imported = append(imported, c.Name)
		return nil
	})
	if err != nil {
		return imported, err
	}
	log.Infof("imported %d classes from %s", len(imported), dir)
	return imported, nil
}

// WriteArtifact encodes c into dir as <name>.cbor, creating package
// directories from the internal name.
func WriteArtifact(dir string, c *classfile.Class) (string, error) {
	data, err := classfile.Marshal(c)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.FromSlash(c.Name)+ArtifactExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
