package storage

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "petshop-cli"

// Keyring stores each key as a separate secret in the OS keychain or
// credential manager.
type Keyring struct {
	service string
	profile string
}

// NewKeyring returns a keychain-backed store. Entries are named
// "<profile>-<key>" under service.
func NewKeyring(service, profile string) *Keyring {
	return &Keyring{service: service, profile: profile}
}

// entryName returns a unique keychain entry per profile and key
func (k *Keyring) entryName(key string) string {
	return fmt.Sprintf("%s-%s", k.profile, key)
}

func (k *Keyring) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, k.entryName(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return value, nil
}

func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(k.service, k.entryName(key), value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (k *Keyring) Remove(key string) error {
	if err := keyring.Delete(k.service, k.entryName(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}
