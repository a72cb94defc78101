package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"gopkg.in/ini.v1"
)

// Setting names understood by the store
const (
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
	KeyRefreshToken = "refresh_token"
	KeyAccessToken  = "access_token"
	KeySpreadsheet  = "spreadsheet"
)

// Store is a flat key/value settings file holding OAuth2 credentials and
// the target spreadsheet key. Changes stay in memory until Flush.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *ini.File
	dirty  bool
	rename func(oldpath, newpath string) error
}

// Load reads the settings file at path
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: settings %s: %v", sheetfeed.ErrConfig, path, err)
	}
	if len(file.Sections()) > 1 {
		return nil, fmt.Errorf("%w: settings %s: sections are not supported", sheetfeed.ErrConfig, path)
	}
	return &Store{path: path, file: file, rename: os.Rename}, nil
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Get returns the named setting
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.file.Section("")
	if !sec.HasKey(name) {
		return "", false
	}
	return sec.Key(name).String(), true
}

// Set updates a setting in memory. The store only becomes dirty when the
// value actually changes.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.file.Section("")
	if sec.HasKey(name) && sec.Key(name).String() == value {
		return
	}
	sec.Key(name).SetValue(value)
	s.dirty = true
}

// Dirty reports whether there are unsaved changes
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

// Credentials returns the stored OAuth2 credentials
func (s *Store) Credentials() sheetfeed.Credentials {
	get := func(name string) string {
		v, _ := s.Get(name)
		return v
	}
	return sheetfeed.Credentials{
		ClientID:     get(KeyClientID),
		ClientSecret: get(KeyClientSecret),
		RefreshToken: get(KeyRefreshToken),
		AccessToken:  get(KeyAccessToken),
	}
}

// Update stores token values that differ from what is held
func (s *Store) Update(c sheetfeed.Credentials) {
	if c.AccessToken != "" {
		s.Set(KeyAccessToken, c.AccessToken)
	}
	if c.RefreshToken != "" {
		s.Set(KeyRefreshToken, c.RefreshToken)
	}
}

// Flush atomically replaces the settings file when the store is dirty.
// The replacement keeps the original file's permissions and ownership.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.writeAtomic(); err != nil {
		return fmt.Errorf("failed to save settings %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

func (s *Store) writeAtomic() (err error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := s.file.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := copyOwner(tmp, info); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := s.rename(tmpName, s.path); err != nil {
		return err
	}
	committed = true
	return nil
}

var errNotRegular = errors.New("settings path is not a regular file")
