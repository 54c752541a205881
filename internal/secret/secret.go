// Package secret implements the shared-secret check guarding /render and
// /flush. The secret is read from a file once and cached for the life of
// the process; in dev mode the check is skipped entirely.
package secret

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrMismatch is returned when the supplied secret does not match the
// configured one.
var ErrMismatch = errors.New("Missing or invalid secret")

// Checker validates request secrets against a file read once and cached.
type Checker struct {
	path string
	dev  bool

	once    sync.Once
	value   string
	loadErr error
}

// New creates a secret checker for the given file path. When dev is true,
// Check always succeeds without reading the file.
func New(path string, dev bool) *Checker {
	return &Checker{path: path, dev: dev}
}

// Check validates the supplied secret. It lazily reads and caches the
// secret file on first call.
func (c *Checker) Check(supplied string) error {
	if c.dev {
		return nil
	}

	c.once.Do(c.load)
	if c.loadErr != nil {
		return c.loadErr
	}

	if supplied == "" || supplied != c.value {
		return ErrMismatch
	}
	return nil
}

func (c *Checker) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.loadErr = errors.New("File not found")
			return
		}
		c.loadErr = err
		return
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		c.loadErr = errors.New("secret file is empty!")
		return
	}

	c.value = value
}
