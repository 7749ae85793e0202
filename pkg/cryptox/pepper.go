package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	pepperMu sync.RWMutex
	pepper   string
)

// Pepper returns the process-wide pepper mixed into every password hash.
// It is empty until LoadPepper or SetPepper has been called.
func Pepper() string {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	return pepper
}

// SetPepper overrides the pepper, mainly for tests.
func SetPepper(p string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = p
}

// LoadPepper reads the pepper from file, generating and persisting a new one
// when the file does not exist yet. Losing this file invalidates every stored
// password hash.
func LoadPepper(file string) error {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return fmt.Errorf("cryptox: pepper dir: %w", err)
	}

	raw, err := os.ReadFile(file)
	switch {
	case err == nil:
		SetPepper(strings.TrimSpace(string(raw)))
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cryptox: read pepper: %w", err)
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	generated := base64.RawURLEncoding.EncodeToString(buf)

	if err := os.WriteFile(file, []byte(generated), 0o600); err != nil {
		return fmt.Errorf("cryptox: write pepper: %w", err)
	}

	SetPepper(generated)
	return nil
}
