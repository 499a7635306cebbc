package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// Credentials is the per-session credential area handed to the protocol
// client. It follows the session across promotion: Dir resolves to the
// persisted directory once one exists, else to the pending directory.
type Credentials struct {
	id    string
	store *Store
}

// ID returns the session id the credentials belong to.
func (c *Credentials) ID() string {
	return c.id
}

// Dir returns the directory currently holding the session's credentials.
func (c *Credentials) Dir() string {
	if c.store.IsPersisted(c.id) {
		return c.store.PersistedPath(c.id)
	}
	return c.store.PendingPath(c.id)
}

// Path returns the path of a named credential file inside Dir.
func (c *Credentials) Path(name string) (string, error) {
	if err := validateFileName(name); err != nil {
		return "", err
	}
	return filepath.Join(c.Dir(), name), nil
}

// ReadFile reads a named credential file.
func (c *Credentials) ReadFile(name string) ([]byte, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile replaces a named credential file atomically.
func (c *Credentials) WriteFile(name string, data []byte) error {
	path, err := c.Path(name)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return &StoreError{Op: "write", ID: c.id, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &StoreError{Op: "write", ID: c.id, Err: err}
	}
	return nil
}

func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid credential file name %q", name)
	}
	return nil
}
