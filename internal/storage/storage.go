// Package storage provides the durable key-value port the session store
// persists through, with file, SQLite, OS keychain and in-memory backends.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Keys written by the session store and the API gateway.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyCSRFToken   = "csrf_token"
	KeyCSRFCookie  = "csrf_cookie"
	KeyAuthStorage = "auth-storage"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// profileName keeps profile names usable as file names and keyring entries
var profileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateProfile rejects profile names that could escape the state
// directory, such as "../x".
func ValidateProfile(profile string) error {
	if !profileName.MatchString(profile) {
		return fmt.Errorf("invalid profile name %q (use letters, digits, '.', '_' or '-')", profile)
	}
	return nil
}

// Store is a durable string key-value store. Remove of a missing key is
// not an error.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Kind names a storage backend.
type Kind string

const (
	KindFile    Kind = "file"
	KindSQLite  Kind = "sqlite"
	KindKeyring Kind = "keyring"
	KindMemory  Kind = "memory"
)

// Options configures Open.
type Options struct {
	Kind    Kind
	Dir     string // state directory for file and sqlite backends
	Profile string // namespaces entries per server profile
}

// Open returns the backend selected by opts.Kind.
func Open(opts Options) (Store, error) {
	profile := opts.Profile
	if profile == "" {
		profile = "default"
	}
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindFile, "":
		return NewFile(filepath.Join(opts.Dir, fmt.Sprintf("%s.json", profile))), nil
	case KindSQLite:
		return NewSQLite(filepath.Join(opts.Dir, "petshop.sqlite"), profile)
	case KindKeyring:
		return NewKeyring(keyringService, profile), nil
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q (expected file, sqlite, keyring or memory)", opts.Kind)
	}
}
