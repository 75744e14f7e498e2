package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "taskboard"
	tokenKey    = "token"
)

// ErrNoToken is returned by Token when no credential is stored.
var ErrNoToken = errors.New("no stored token")

// Store is the read/write contract for the bearer credential. The token
// is written only by the login/logout flow and read on every
// authenticated call.
type Store interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

// Keyring persists the bearer token in the system keyring.
type Keyring struct{}

// NewKeyring returns a keyring-backed credential store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/taskboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("taskboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token retrieves the stored bearer token.
func (k *Keyring) Token() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("getting token: %w", err)
	}

	return string(item.Data), nil
}

// SetToken stores the bearer token.
func (k *Keyring) SetToken(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("setting token: %w", err)
	}

	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (k *Keyring) Clear() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing token: %w", err)
	}

	return nil
}

// Memory is an in-process credential store used by tests and by
// sessions that should not persist the token.
type Memory struct {
	token string
}

// NewMemory returns an empty in-memory credential store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Token() (string, error) {
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *Memory) SetToken(token string) error {
	m.token = token
	return nil
}

func (m *Memory) Clear() error {
	m.token = ""
	return nil
}
